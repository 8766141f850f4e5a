package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DatabaseHealth captures diagnostic information about the directory database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	ExpectedVersion  int
	MissingTables    []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// Healthy reports whether every check passed.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists &&
		h.DatabaseReadable &&
		h.SchemaVersion == h.ExpectedVersion &&
		len(h.MissingTables) == 0 &&
		h.IntegrityCheck &&
		h.Error == ""
}

// CheckHealth returns diagnostic information about the directory database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:          s.path,
		ExpectedVersion: schemaVersion,
	}

	if s.path == "" {
		return health, errors.New("directory database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat directory database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("directory database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("directory database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping directory database: %w", err)
	}
	health.DatabaseReadable = true

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, table := range expectedTables {
		if _, ok := present[table]; !ok {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	if _, ok := present["schema_version"]; ok {
		version, err := s.readSchemaVersion(connCtx)
		if err != nil {
			health.Error = err.Error()
			return health, err
		}
		health.SchemaVersion = version
	}

	if _, ok := present["work_items"]; ok {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM work_items").Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count work items: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
