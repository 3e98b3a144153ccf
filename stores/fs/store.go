// Package fs persists session token snapshots in a JSON file, keyed by
// endpoint. It lives entirely on the caller's side of the persistence
// boundary: snapshots come out of Session.TokenData and go back in through
// Session.SetTokens; the session core itself never sees this package.
package fs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/panyam/apisession"
)

// Store holds token snapshots for one or more endpoints, batched in memory
// and flushed to disk by Save.
type Store struct {
	mu        sync.RWMutex
	path      string
	snapshots map[string]apisession.TokenData
	dirty     bool
}

type tokenFile struct {
	Endpoints map[string]apisession.TokenData `json:"endpoints"`
}

// NewStore opens (or prepares to create) the token file at path, loading any
// snapshots already on disk. An empty path defaults to
// ~/.config/<appName>/tokens.json, with appName defaulting to "apisession".
func NewStore(path string, appName string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", homeErr)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "apisession"
		}
		path = filepath.Join(configDir, appName, "tokens.json")
	}

	snapshots, err := readTokenFile(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, snapshots: snapshots}, nil
}

func readTokenFile(path string) (map[string]apisession.TokenData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]apisession.TokenData), nil
	}
	if err != nil {
		return nil, err
	}

	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if file.Endpoints == nil {
		file.Endpoints = make(map[string]apisession.TokenData)
	}
	return file.Endpoints, nil
}

// endpointKey reduces an endpoint URL to scheme://host so that paths and
// query strings do not fragment the keyspace.
func endpointKey(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.Scheme + "://" + u.Host, nil
}

// Get returns a copy of the snapshot stored for endpoint, or nil, nil when
// none exists.
func (s *Store) Get(endpoint string) (*apisession.TokenData, error) {
	key, err := endpointKey(endpoint)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.snapshots[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return &data, nil
}

// Set records a snapshot for endpoint. The change is in-memory until Save.
func (s *Store) Set(endpoint string, data apisession.TokenData) error {
	key, err := endpointKey(endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshots[key] = data
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// Remove drops the snapshot for endpoint. The change is in-memory until Save.
func (s *Store) Remove(endpoint string) error {
	key, err := endpointKey(endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.snapshots, key)
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// Endpoints lists every endpoint with a stored snapshot.
func (s *Store) Endpoints() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	endpoints := make([]string, 0, len(s.snapshots))
	for key := range s.snapshots {
		endpoints = append(endpoints, key)
	}
	return endpoints, nil
}

// Save flushes pending changes to disk. It writes nothing when no mutation
// has happened since the last flush, so callers can invoke it unconditionally
// on shutdown. Token material is written with owner-only permissions.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(tokenFile{Endpoints: s.snapshots}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.dirty = false
	return nil
}

// Path reports where snapshots are persisted.
func (s *Store) Path() string {
	return s.path
}
