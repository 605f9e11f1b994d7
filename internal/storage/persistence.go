package storage

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/unicred/unicred-cli/internal/crypto"
)

// Record is the durable session payload.
//
// Field names mirror the storage keys the mobile apps use so a session
// exported from one client can be imported by another. Role is duplicated
// from the profile JSON for a fast pre-hydration read.
type Record struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserData     string `json:"userData"`
	Role         string `json:"role"`
}

// GenerateDeviceKey generates a new 32-byte device storage key
func GenerateDeviceKey() (*[32]byte, error) {
	key := &[32]byte{}
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// SaveDeviceKey saves the device key to a file
func SaveDeviceKey(path string, key *[32]byte) error {
	// Encode as base64 for readability
	encoded := base64.StdEncoding.EncodeToString(key[:])

	// Write with restrictive permissions
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	return nil
}

// LoadDeviceKey loads the device key from a file
func LoadDeviceKey(path string) (*[32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}

	if len(decoded) != 32 {
		return nil, fmt.Errorf("invalid key length: %d (expected 32)", len(decoded))
	}

	key := &[32]byte{}
	copy(key[:], decoded)
	return key, nil
}

// GetOrCreateDeviceKey loads or generates the device storage key
func GetOrCreateDeviceKey(path string) (*[32]byte, error) {
	key, err := LoadDeviceKey(path)
	if err == nil {
		return key, nil
	}

	key, err = GenerateDeviceKey()
	if err != nil {
		return nil, err
	}

	if err := SaveDeviceKey(path, key); err != nil {
		return nil, err
	}

	return key, nil
}

// FileStore persists the session record as a secretbox-encrypted file under
// the device key. Losing the key file invalidates the session file, which
// degrades to a fresh login rather than an error.
type FileStore struct {
	path string
	key  *[32]byte
}

// NewFileStore creates a file store writing to path.
func NewFileStore(path string, key *[32]byte) *FileStore {
	return &FileStore{path: path, key: key}
}

// Save durably writes the record before returning.
func (f *FileStore) Save(rec Record) error {
	encrypted, err := crypto.SealJSON(rec, f.key)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	if err := os.WriteFile(f.path, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load reads the previously saved record. A missing or undecryptable file is
// reported as ok=false with no error: the client starts with an empty session.
func (f *FileStore) Load() (Record, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to read session: %w", err)
	}

	var rec Record
	if err := crypto.OpenJSON(data, f.key, &rec); err != nil {
		// Wrong device key or corrupted file. Treat as no session.
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Wipe removes the session file. Removing an absent file is a no-op.
func (f *FileStore) Wipe() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
