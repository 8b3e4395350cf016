package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the session cookie from the environment. It is
// read-only: exporting JAMABANDI_SESSION_COOKIE is how CI and one-off
// runs supply a fresh cookie without touching any store.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-variable credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve reads the credential from JAMABANDI_SESSION_COOKIE. Only the
// default profile is available through the environment.
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	if profile != "" && profile != DefaultProfile {
		return nil, ErrCredentialsNotFound
	}

	cookie := os.Getenv("JAMABANDI_SESSION_COOKIE")
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Profile:      DefaultProfile,
		Cookie:       cookie,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment credential if set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment credential is set
func (e *EnvironmentStore) Exists(profile string) bool {
	cred, err := e.Retrieve(profile)
	return err == nil && cred != nil
}
