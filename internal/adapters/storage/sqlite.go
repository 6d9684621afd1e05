package storage

// sqlite.go — el mismo contrato que FileStore sobre SQLite (pure Go, sin CGo).
//
// Tablas:
//   - `spend_ledger`: una fila por día ISO con el gasto acumulado.
//   - `positions`: una fila por condition_id; la PK impide duplicados.
//   - `credentials`: una única fila (id = 1).
// Toda mutación va en una transacción.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS spend_ledger (
    day    TEXT PRIMARY KEY,
    amount REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS positions (
    condition_id TEXT PRIMARY KEY,
    question     TEXT    NOT NULL DEFAULT '',
    no_token_id  TEXT    NOT NULL DEFAULT '',
    entry_price  REAL    NOT NULL DEFAULT 0,
    bet_size     REAL    NOT NULL DEFAULT 0,
    shares       REAL    NOT NULL DEFAULT 0,
    order_id     TEXT    NOT NULL DEFAULT '',
    created_at   TEXT    NOT NULL,
    resolved     INTEGER NOT NULL DEFAULT 0,
    dry_run      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS credentials (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    api_key    TEXT NOT NULL,
    secret     TEXT NOT NULL,
    passphrase TEXT NOT NULL,
    address    TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_positions_resolved ON positions(resolved);
`

// SQLiteStore implementa ports.StateStore usando SQLite.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	mu            sync.Mutex
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string, retentionDays int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, retentionDays: retentionDays}, nil
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) DailySpend(ctx context.Context, day time.Time) (float64, error) {
	var amount float64
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM spend_ledger WHERE day = ?`, domain.DayKey(day),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.DailySpend: %w", corrupt(err))
	}
	return amount, nil
}

func (s *SQLiteStore) SpendLedger(ctx context.Context) (domain.SpendLedger, error) {
	ledger, err := queryLedger(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("storage.SpendLedger: %w", err)
	}
	return ledger, nil
}

// RecordSpend hace el read-modify-write del ledger dentro de una transacción.
func (s *SQLiteStore) RecordSpend(ctx context.Context, amount float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordSpend: begin tx: %w", err)
	}
	defer tx.Rollback()

	ledger, err := queryLedger(ctx, tx)
	if err != nil {
		return fmt.Errorf("storage.RecordSpend: %w", err)
	}
	next, err := ledger.RecordAndPrune(amount, at, s.retentionDays)
	if err != nil {
		return fmt.Errorf("storage.RecordSpend: %w", err)
	}

	for day := range ledger {
		if _, kept := next[day]; kept {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM spend_ledger WHERE day = ?`, day); err != nil {
			return fmt.Errorf("storage.RecordSpend: prune %s: %w", day, err)
		}
	}

	key := domain.DayKey(at)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO spend_ledger (day, amount) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET amount = excluded.amount`,
		key, next[key],
	); err != nil {
		return fmt.Errorf("storage.RecordSpend: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordSpend: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Positions(ctx context.Context) (map[string]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, question, no_token_id, entry_price, bet_size, shares,
		       order_id, created_at, resolved, dry_run
		FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("storage.Positions: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Position)
	for rows.Next() {
		var (
			p         domain.Position
			createdAt string
		)
		if err := rows.Scan(&p.ConditionID, &p.Question, &p.NoTokenID, &p.EntryPrice,
			&p.BetSize, &p.Shares, &p.OrderID, &createdAt, &p.Resolved, &p.DryRun); err != nil {
			return nil, fmt.Errorf("storage.Positions: %w", corrupt(err))
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage.Positions: %s: %w", p.ConditionID, corrupt(err))
		}
		p.Timestamp = ts
		result[p.ConditionID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.Positions: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) SavePosition(ctx context.Context, p domain.Position) error {
	if p.ConditionID == "" {
		return errors.New("storage.SavePosition: empty condition id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO positions
			(condition_id, question, no_token_id, entry_price, bet_size, shares,
			 order_id, created_at, resolved, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			question    = excluded.question,
			no_token_id = excluded.no_token_id,
			entry_price = excluded.entry_price,
			bet_size    = excluded.bet_size,
			shares      = excluded.shares,
			order_id    = excluded.order_id,
			created_at  = excluded.created_at,
			resolved    = excluded.resolved,
			dry_run     = excluded.dry_run`,
		p.ConditionID, p.Question, p.NoTokenID, p.EntryPrice, p.BetSize, p.Shares,
		p.OrderID, p.Timestamp.UTC().Format(time.RFC3339Nano), p.Resolved, p.DryRun,
	); err != nil {
		return fmt.Errorf("storage.SavePosition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SavePosition: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsDuplicate(ctx context.Context, conditionID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM positions WHERE condition_id = ?`, conditionID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.IsDuplicate: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) OpenPositionCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE resolved = 0`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.OpenPositionCount: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Credentials(ctx context.Context) (domain.Credentials, bool, error) {
	creds, ok, err := queryCreds(ctx, s.db)
	if err != nil {
		return domain.Credentials{}, false, fmt.Errorf("storage.Credentials: %w", err)
	}
	return creds, ok, nil
}

// GetOrCreateCredentials serializa la derivación con el mutex del store para
// que dos llamadas concurrentes no deriven dos veces.
func (s *SQLiteStore) GetOrCreateCredentials(ctx context.Context, derive ports.DeriveFunc) (domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok, err := queryCreds(ctx, s.db)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("storage.GetOrCreateCredentials: %w", err)
	}
	if ok {
		return creds, nil
	}

	creds, err = derive(ctx)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("storage.GetOrCreateCredentials: derive: %w", err)
	}
	if creds.Empty() {
		return domain.Credentials{}, errors.New("storage.GetOrCreateCredentials: derive returned empty credentials")
	}

	var createdAt string
	if !creds.CreatedAt.IsZero() {
		createdAt = creds.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, api_key, secret, passphrase, address, created_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_key    = excluded.api_key,
			secret     = excluded.secret,
			passphrase = excluded.passphrase,
			address    = excluded.address,
			created_at = excluded.created_at`,
		creds.APIKey, creds.Secret, creds.Passphrase, creds.Address, createdAt,
	); err != nil {
		return domain.Credentials{}, fmt.Errorf("storage.GetOrCreateCredentials: persist: %w", err)
	}
	return creds, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryLedger(ctx context.Context, q queryer) (domain.SpendLedger, error) {
	rows, err := q.QueryContext(ctx, `SELECT day, amount FROM spend_ledger`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	ledger := make(domain.SpendLedger)
	for rows.Next() {
		var (
			day    string
			amount float64
		)
		if err := rows.Scan(&day, &amount); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", corrupt(err))
		}
		ledger[day] = amount
	}
	return ledger, rows.Err()
}

func queryCreds(ctx context.Context, q queryer) (domain.Credentials, bool, error) {
	var (
		c         domain.Credentials
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT api_key, secret, passphrase, address, created_at FROM credentials WHERE id = 1`,
	).Scan(&c.APIKey, &c.Secret, &c.Passphrase, &c.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credentials{}, false, nil
	}
	if err != nil {
		return domain.Credentials{}, false, corrupt(err)
	}
	if createdAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			c.CreatedAt = ts
		}
	}
	return c, !c.Empty(), nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStateCorruption, err)
}
