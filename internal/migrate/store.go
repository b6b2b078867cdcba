package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/model"
)

const rollbackSuffix = ".rollback"

// Store enumerates migration definitions from a directory and reads the
// applied set from the schema_migrations tracking table. It is read-only;
// the Runner is the only writer of migration records.
type Store struct {
	dir string
	db  db.DB
}

func NewStore(dir string, database db.DB) *Store {
	return &Store{dir: dir, db: database}
}

// ListDefinitions returns all migration definitions sorted
// lexicographically by filename. This ordering is the application order;
// callers must not reorder.
func (s *Store) ListDefinitions() ([]model.MigrationDefinition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", ErrSourceUnavailable, s.dir, err)
	}

	var defs []model.MigrationDefinition
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, rollbackSuffix) {
			continue
		}

		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, name, err)
		}

		def := model.MigrationDefinition{Filename: name, Body: string(body)}

		rollback, err := os.ReadFile(filepath.Join(s.dir, name+rollbackSuffix))
		if err == nil {
			def.RollbackBody = string(rollback)
			def.HasRollback = true
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, name+rollbackSuffix, err)
		}

		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Filename < defs[j].Filename })
	return defs, nil
}

// GetApplied returns the successfully applied migrations keyed by filename.
func (s *Store) GetApplied(ctx context.Context) (map[string]model.MigrationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT filename, checksum, executed_at, execution_time_ms, success
		FROM schema_migrations WHERE success = true`)
	if err != nil {
		return nil, fmt.Errorf("%w: query applied migrations: %v", ErrTrackingUnavailable, err)
	}
	defer rows.Close()

	applied := make(map[string]model.MigrationRecord)
	for rows.Next() {
		var rec model.MigrationRecord
		if err := rows.Scan(&rec.Filename, &rec.Checksum, &rec.ExecutedAt, &rec.ExecutionTimeMs, &rec.Success); err != nil {
			return nil, fmt.Errorf("%w: scan migration record: %v", ErrTrackingUnavailable, err)
		}
		applied[rec.Filename] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate migration records: %v", ErrTrackingUnavailable, err)
	}
	return applied, nil
}

// GetPending returns the definitions with no successful record, in
// application order.
func (s *Store) GetPending(ctx context.Context) ([]model.MigrationDefinition, error) {
	defs, err := s.ListDefinitions()
	if err != nil {
		return nil, err
	}

	applied, err := s.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	var pending []model.MigrationDefinition
	for _, def := range defs {
		if _, ok := applied[def.Filename]; !ok {
			pending = append(pending, def)
		}
	}
	return pending, nil
}

// Checksum returns the hex-encoded SHA-256 of a migration body.
func Checksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
