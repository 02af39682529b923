package kv

import "sync"

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	disabled bool
	quota    int // max total bytes of keys+values; 0 means unlimited
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Disable makes every operation fail with ErrUnavailable until Enable is called.
func (m *Memory) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = true
}

func (m *Memory) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = false
}

// SetQuota limits the total size in bytes of stored keys and values.
func (m *Memory) SetQuota(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = bytes
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	if m.quota > 0 {
		size := len(key) + len(value)
		for k, v := range m.data {
			if k != key {
				size += len(k) + len(v)
			}
		}
		if size > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
