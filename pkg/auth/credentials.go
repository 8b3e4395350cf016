package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Credential holds one captured portal session: the opaque cookie value
// obtained from a manual browser login, keyed by a profile name so
// sessions for different villages or operators can coexist
type Credential struct {
	Profile      string    `json:"profile"`
	Cookie       string    `json:"cookie"`
	LastModified time.Time `json:"last_modified"`
}

// DefaultProfile is used when no profile is named
const DefaultProfile = "default"

// CredentialStore is the interface for storing and retrieving session cookies
type CredentialStore interface {
	// Store saves a credential under its profile name
	Store(cred *Credential) error

	// Retrieve gets the credential for a profile
	Retrieve(profile string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a profile
	Delete(profile string) error

	// Exists checks if a credential exists for a profile
	Exists(profile string) bool
}

// Manager handles credential storage with fallback mechanisms: the
// system keychain when available, then an encrypted file, then the
// environment
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a credential using the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred.Cookie == "" {
		return errors.New("session cookie is required")
	}
	if cred.Profile == "" {
		cred.Profile = DefaultProfile
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the credential for a profile from the first store that
// has it
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("no session stored for profile %q", profile)
}

// RetrieveDefault gets the default-profile credential, preferring the
// environment so a freshly exported cookie wins over a stale saved one
func (m *Manager) RetrieveDefault() (*Credential, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if cred, err := envStore.Retrieve(DefaultProfile); err == nil && cred != nil {
			return cred, nil
		}
	}

	if cred, err := m.Retrieve(DefaultProfile); err == nil {
		return cred, nil
	}

	creds, err := m.List()
	if err == nil && len(creds) > 0 {
		return creds[0], nil
	}

	return nil, errors.New("no session credential found")
}

// List returns all stored credentials, most recently modified winning
// when a profile appears in more than one store
func (m *Manager) List() ([]*Credential, error) {
	credMap := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := credMap[cred.Profile]; !ok || cred.LastModified.After(existing.LastModified) {
				credMap[cred.Profile] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range credMap {
		result = append(result, cred)
	}

	return result, nil
}

// Delete removes a profile's credential from all stores
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("no session stored for profile %q", profile)
	}

	return nil
}

// DeleteAll removes every stored credential
func (m *Manager) DeleteAll() error {
	creds, err := m.List()
	if err != nil {
		return err
	}

	for _, cred := range creds {
		_ = m.Delete(cred.Profile)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "jamabandi")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "jamabandi")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "jamabandi")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "jamabandi")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the credential with the cookie masked for
// display
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Profile:      cred.Profile,
		Cookie:       maskString(cred.Cookie),
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credential not found")
	ErrInvalidCredentials  = errors.New("invalid credential")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// ExtractCookieFromHeader pulls one cookie's value out of a raw Cookie
// header pasted from browser developer tools
func ExtractCookieFromHeader(header, cookieName string) string {
	for _, part := range strings.Split(header, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && strings.TrimSpace(name) == cookieName {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
