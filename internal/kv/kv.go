// Package kv defines the durable key-value storage the consent manager persists into.
package kv

import "errors"

// ErrUnavailable is returned by stores that are disabled or sandboxed.
var ErrUnavailable = errors.New("storage unavailable")

// ErrQuotaExceeded is returned when a write would exceed the store's capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a durable string key-value store. Implemented by Memory and storage.ScopedKV.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

const probeKey = "__storage_test__"

// Available reports whether s accepts writes by setting and removing a probe key.
func Available(s Store) bool {
	if s == nil {
		return false
	}
	if err := s.Set(probeKey, probeKey); err != nil {
		return false
	}
	if err := s.Remove(probeKey); err != nil {
		return false
	}
	return true
}
