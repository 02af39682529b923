package storage

import (
	"database/sql"
	"time"
)

// ScopedKV is a key-value view over kv_entries restricted to one scope,
// typically a visitor id. It satisfies kv.Store.
type ScopedKV struct {
	db    *sql.DB
	scope string
}

// KV returns the key-value view for scope.
func (s *Store) KV(scope string) *ScopedKV {
	return &ScopedKV{db: s.db, scope: scope}
}

func (k *ScopedKV) Scope() string { return k.scope }

func (k *ScopedKV) Get(key string) (string, bool, error) {
	var value string
	err := k.db.QueryRow(`SELECT value FROM kv_entries WHERE scope = ? AND key = ?`, k.scope, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (k *ScopedKV) Set(key, value string) error {
	_, err := k.db.Exec(`
		INSERT INTO kv_entries (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		k.scope, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (k *ScopedKV) Remove(key string) error {
	_, err := k.db.Exec(`DELETE FROM kv_entries WHERE scope = ? AND key = ?`, k.scope, key)
	return err
}

// Scopes lists every scope holding key, e.g. all visitors with a stored consent record.
func (s *Store) Scopes(key string) ([]string, error) {
	rows, err := s.db.Query(`SELECT scope FROM kv_entries WHERE key = ? ORDER BY scope`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var sc string
		if err := rows.Scan(&sc); err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}
