package storage

// file.go — estado en documentos JSON bajo un directorio.
//
// Cada documento se escribe en un temporal del mismo directorio, se hace
// fsync, se renombra sobre el destino y se hace fsync del directorio: un
// lector ve el documento anterior o el nuevo, nunca uno a medias.
// Los archivos legacy sin envelope (mapa plano) se leen igual.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

const (
	spendFile     = "daily_spend.json"
	positionsFile = "positions.json"
	credsFile     = "api_creds.json"

	spendSchema     = "nobet.daily_spend"
	positionsSchema = "nobet.positions"
	credsSchema     = "nobet.api_creds"
	schemaVersion   = 1
)

// envelope es el formato autodescriptivo de cada documento.
type envelope struct {
	Schema  string          `json:"schema"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// FileStore implementa ports.StateStore con tres documentos JSON.
type FileStore struct {
	dir           string
	retentionDays int
	mu            sync.Mutex
}

// NewFileStore crea el directorio si no existe.
func NewFileStore(dir string, retentionDays int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage.NewFileStore: mkdir %q: %w", dir, err)
	}
	return &FileStore{dir: dir, retentionDays: retentionDays}, nil
}

// Dir devuelve el directorio raíz del estado.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Close() error { return nil }

// DailySpend devuelve el gasto registrado para el día de day.
func (s *FileStore) DailySpend(_ context.Context, day time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.loadLedger()
	if err != nil {
		return 0, fmt.Errorf("storage.DailySpend: %w", err)
	}
	return ledger.On(day), nil
}

// SpendLedger devuelve una copia del ledger completo.
func (s *FileStore) SpendLedger(_ context.Context) (domain.SpendLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.loadLedger()
	if err != nil {
		return nil, fmt.Errorf("storage.SpendLedger: %w", err)
	}
	return ledger, nil
}

// RecordSpend suma amount al día de at y poda en un solo read-modify-write.
func (s *FileStore) RecordSpend(_ context.Context, amount float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.loadLedger()
	if err != nil {
		return fmt.Errorf("storage.RecordSpend: %w", err)
	}
	next, err := ledger.RecordAndPrune(amount, at, s.retentionDays)
	if err != nil {
		return fmt.Errorf("storage.RecordSpend: %w", err)
	}
	if err := s.writeDoc(spendFile, spendSchema, next, 0o600); err != nil {
		return fmt.Errorf("storage.RecordSpend: %w", err)
	}
	return nil
}

// Positions devuelve todas las posiciones por condition id.
func (s *FileStore) Positions(_ context.Context) (map[string]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.loadPositions()
	if err != nil {
		return nil, fmt.Errorf("storage.Positions: %w", err)
	}
	return positions, nil
}

// SavePosition inserta o reemplaza la posición de p.ConditionID.
func (s *FileStore) SavePosition(_ context.Context, p domain.Position) error {
	if p.ConditionID == "" {
		return errors.New("storage.SavePosition: empty condition id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.loadPositions()
	if err != nil {
		return fmt.Errorf("storage.SavePosition: %w", err)
	}
	positions[p.ConditionID] = p
	if err := s.writeDoc(positionsFile, positionsSchema, positions, 0o600); err != nil {
		return fmt.Errorf("storage.SavePosition: %w", err)
	}
	return nil
}

// IsDuplicate indica si ya hay posición para conditionID.
func (s *FileStore) IsDuplicate(_ context.Context, conditionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.loadPositions()
	if err != nil {
		return false, fmt.Errorf("storage.IsDuplicate: %w", err)
	}
	_, ok := positions[conditionID]
	return ok, nil
}

// OpenPositionCount cuenta las posiciones no resueltas.
func (s *FileStore) OpenPositionCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.loadPositions()
	if err != nil {
		return 0, fmt.Errorf("storage.OpenPositionCount: %w", err)
	}
	n := 0
	for _, p := range positions {
		if !p.Resolved {
			n++
		}
	}
	return n, nil
}

// Credentials devuelve las credenciales cacheadas.
func (s *FileStore) Credentials(_ context.Context) (domain.Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok, err := s.loadCreds()
	if err != nil {
		return domain.Credentials{}, false, fmt.Errorf("storage.Credentials: %w", err)
	}
	return creds, ok, nil
}

// GetOrCreateCredentials devuelve las credenciales cacheadas o llama a derive
// y las persiste antes de devolverlas.
func (s *FileStore) GetOrCreateCredentials(ctx context.Context, derive ports.DeriveFunc) (domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok, err := s.loadCreds()
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
	if err := s.writeDoc(credsFile, credsSchema, creds, 0o600); err != nil {
		return domain.Credentials{}, fmt.Errorf("storage.GetOrCreateCredentials: %w", err)
	}
	return creds, nil
}

func (s *FileStore) loadLedger() (domain.SpendLedger, error) {
	ledger := make(domain.SpendLedger)
	if _, err := s.readDoc(spendFile, spendSchema, &ledger); err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = make(domain.SpendLedger)
	}
	return ledger, nil
}

func (s *FileStore) loadPositions() (map[string]domain.Position, error) {
	positions := make(map[string]domain.Position)
	if _, err := s.readDoc(positionsFile, positionsSchema, &positions); err != nil {
		return nil, err
	}
	if positions == nil {
		positions = make(map[string]domain.Position)
	}
	// Los archivos heredados no guardan el condition id dentro del valor.
	for cid, p := range positions {
		if p.ConditionID == "" {
			p.ConditionID = cid
			positions[cid] = p
		}
	}
	return positions, nil
}

func (s *FileStore) loadCreds() (domain.Credentials, bool, error) {
	var creds domain.Credentials
	found, err := s.readDoc(credsFile, credsSchema, &creds)
	if err != nil {
		return domain.Credentials{}, false, err
	}
	return creds, found && !creds.Empty(), nil
}

// readDoc decodifica el documento name en out. found es false si no existe.
// Cualquier contenido ilegible devuelve domain.ErrStateCorruption: nunca se
// reinterpreta como vacío.
func (s *FileStore) readDoc(name, schema string, out any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrStateCorruption, path, err)
	}

	payload := data
	if raw, ok := fields["schema"]; ok {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return false, fmt.Errorf("%w: %s: envelope: %v", domain.ErrStateCorruption, path, err)
		}
		if env.Schema != schema {
			return false, fmt.Errorf("%w: %s: schema %s, want %s", domain.ErrStateCorruption, path, raw, schema)
		}
		payload = env.Data
		if len(payload) == 0 {
			return true, nil
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrStateCorruption, path, err)
	}
	return true, nil
}

// writeDoc escribe data dentro del envelope de forma atómica.
func (s *FileStore) writeDoc(name, schema string, data any, perm os.FileMode) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	doc, err := json.MarshalIndent(envelope{Schema: schema, Version: schemaVersion, Data: payload}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", name, err)
	}
	return writeFileAtomic(s.dir, name, append(doc, '\n'), perm)
}

// writeFileAtomic: temporal → fsync → rename → fsync del directorio.
func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}
	return nil
}
