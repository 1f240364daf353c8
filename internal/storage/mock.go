package storage

import (
	"context"
	"sync"

	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/script"
)

// MockStorage is an in-memory Storage for handler tests.
type MockStorage struct {
	mu        sync.RWMutex
	docs      map[string]*progress.CaseProgress
	scenarios map[string]*script.Progress
	profiles  map[string]*progress.Profile
	apiKeys   map[string]string

	pingError error
	saveError error
	loadError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		docs:      make(map[string]*progress.CaseProgress),
		scenarios: make(map[string]*script.Progress),
		profiles:  make(map[string]*progress.Profile),
		apiKeys:   make(map[string]string),
	}
}

// SetPingError configures the mock to fail health checks.
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures all writes to fail.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetLoadError configures all reads to fail.
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// SetAPIKeys seeds the provider key map.
func (m *MockStorage) SetAPIKeys(keys map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKeys = keys
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) LoadProgress(ctx context.Context, userID, caseID string) (*progress.CaseProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	doc, ok := m.docs[userID+":"+caseID]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MockStorage) SaveProgress(ctx context.Context, doc *progress.CaseProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.docs[doc.UserID+":"+doc.CaseID] = doc
	return nil
}

func (m *MockStorage) LoadScenario(ctx context.Context, userID string) (*script.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	doc, ok := m.scenarios[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MockStorage) SaveScenario(ctx context.Context, doc *script.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.scenarios[doc.UserID] = doc
	return nil
}

func (m *MockStorage) LoadProfile(ctx context.Context, userID string) (*progress.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *MockStorage) SaveProfile(ctx context.Context, p *progress.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.profiles[p.UserID] = p
	return nil
}

func (m *MockStorage) GetAPIKeys(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	return m.apiKeys, nil
}
