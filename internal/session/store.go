// Package session saves browser cookie snapshots between runs so a later
// harvest can start with the consent already given. Snapshots live in the
// OS keyring, or in 0600 files where no keyring is reachable.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"

	"github.com/law-makers/harvest/pkg/models"
)

const (
	// KeyringService is the keyring service name
	KeyringService = "harvest-cli"
	// FallbackDir is the file store location relative to the home directory
	FallbackDir = ".harvest/sessions"

	manifestKey = "_manifest"
	checkKey    = "_check_"
)

var (
	// ErrNotFound is returned when no snapshot has the requested name
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned for a snapshot past its expiry
	ErrExpired = errors.New("session expired")
)

// Snapshot is a saved set of cookies for one site
type Snapshot struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   map[string]string `json:"cookies"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// NewSnapshot captures cookies under name
func NewSnapshot(name, url string, cookies models.Cookies, ttl time.Duration) *Snapshot {
	s := &Snapshot{
		Name:      name,
		URL:       url,
		Cookies:   cookies.Map(),
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		s.ExpiresAt = s.CreatedAt.Add(ttl)
	}
	return s
}

// CookieSnapshot returns the saved cookies as an immutable snapshot
func (s *Snapshot) CookieSnapshot() models.Cookies {
	return models.NewCookies(s.Cookies)
}

// backend stores serialized snapshots by name
type backend interface {
	get(name string) ([]byte, error)
	set(name string, data []byte) error
	remove(name string) error
	names() ([]string, error)
}

// Store saves and loads snapshots
type Store struct {
	backend backend
}

// NewStore picks the keyring when it is usable and the file store under
// the home directory otherwise
func NewStore() (*Store, error) {
	if keyringUsable() {
		return &Store{backend: keyringBackend{}}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	log.Debug().Msg("Keyring unavailable, storing sessions in files")
	return NewFileStore(filepath.Join(home, FallbackDir)), nil
}

// NewKeyringStore always uses the OS keyring
func NewKeyringStore() *Store {
	return &Store{backend: keyringBackend{}}
}

// NewFileStore keeps snapshots as JSON files in dir
func NewFileStore(dir string) *Store {
	return &Store{backend: fileBackend{dir: dir}}
}

// Save writes s, replacing a snapshot of the same name
func (st *Store) Save(s *Snapshot) error {
	if err := validName(s.Name); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	if err := st.backend.set(s.Name, data); err != nil {
		return fmt.Errorf("save session %q: %w", s.Name, err)
	}
	log.Debug().Str("session", s.Name).Int("cookie_count", len(s.Cookies)).Msg("Session saved")
	return nil
}

// Load reads the snapshot called name
func (st *Store) Load(name string) (*Snapshot, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := st.backend.get(name)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", name, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("deserialize session %q: %w", name, err)
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, fmt.Errorf("load session %q: %w", name, ErrExpired)
	}
	return &s, nil
}

// Delete removes the snapshot called name. Missing snapshots are ignored.
func (st *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := st.backend.remove(name); err != nil {
		return fmt.Errorf("delete session %q: %w", name, err)
	}
	return nil
}

// List returns the saved snapshot names in sorted order
func (st *Store) List() ([]string, error) {
	names, err := st.backend.names()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func validName(name string) error {
	switch {
	case name == "":
		return errors.New("session name cannot be empty")
	case strings.HasPrefix(name, "_"):
		return fmt.Errorf("session name %q is reserved", name)
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return fmt.Errorf("session name %q must not contain path separators", name)
	}
	return nil
}

func keyringUsable() bool {
	if os.Getenv("CI") != "" || os.Getenv("CODESPACES") != "" {
		return false
	}
	if err := keyring.Set(KeyringService, checkKey, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, checkKey)
	return true
}

// keyringBackend stores each snapshot as one keyring secret plus a manifest
// of names, since keyrings cannot be enumerated
type keyringBackend struct{}

func (keyringBackend) get(name string) ([]byte, error) {
	data, err := keyring.Get(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (k keyringBackend) set(name string, data []byte) error {
	if err := keyring.Set(KeyringService, name, string(data)); err != nil {
		return err
	}
	return k.updateManifest(name, true)
}

func (k keyringBackend) remove(name string) error {
	if err := keyring.Delete(KeyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return k.updateManifest(name, false)
}

func (keyringBackend) names() ([]string, error) {
	data, err := keyring.Get(KeyringService, manifestKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("deserialize manifest: %w", err)
	}
	return names, nil
}

func (k keyringBackend) updateManifest(name string, add bool) error {
	names, err := k.names()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if add {
		kept = append(kept, name)
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}

type fileBackend struct {
	dir string
}

func (f fileBackend) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f fileBackend) get(name string) ([]byte, error) {
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (f fileBackend) set(name string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path(name), data, 0o600)
}

func (f fileBackend) remove(name string) error {
	err := os.Remove(f.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f fileBackend) names() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return names, nil
}
