package auth

import (
	"sync"
)

// MockStore is an in-memory CredentialStore for tests
type MockStore struct {
	creds map[string]*Credential
	mu    sync.RWMutex

	// Optional failure injection
	StoreErr    error
	RetrieveErr error
	DeleteErr   error
}

// NewMockStore creates an in-memory credential store
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

// Store saves a credential in memory
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if cred == nil || cred.Profile == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *cred
	m.creds[cred.Profile] = &copied
	return nil
}

// Retrieve gets a credential from memory
func (m *MockStore) Retrieve(profile string) (*Credential, error) {
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, exists := m.creds[profile]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	copied := *cred
	return &copied, nil
}

// List returns all stored credentials
func (m *MockStore) List() ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*Credential
	for _, cred := range m.creds {
		copied := *cred
		creds = append(creds, &copied)
	}
	return creds, nil
}

// Delete removes a credential from memory
func (m *MockStore) Delete(profile string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if profile == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.creds[profile]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.creds, profile)
	return nil
}

// Exists checks if a credential exists in memory
func (m *MockStore) Exists(profile string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.creds[profile]
	return exists
}

// Clear removes all stored credentials
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = make(map[string]*Credential)
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}

// NewMockManager creates a manager backed only by an in-memory store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return &Manager{stores: []CredentialStore{store}}, store
}
