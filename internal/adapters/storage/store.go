package storage

import (
	"fmt"

	"github.com/alejandrodnm/nobet/internal/ports"
)

// Open construye el StateStore del driver configurado: "file" usa dir,
// "sqlite" usa dsn.
func Open(driver, dir, dsn string, retentionDays int) (ports.StateStore, error) {
	switch driver {
	case "", "file":
		s, err := NewFileStore(dir, retentionDays)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(dsn, retentionDays)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
	}
}
