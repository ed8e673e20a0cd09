// Package session persists the local identity and drives the login
// lifecycle.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/cloudzz-dev/cldzchat/internal/client/models"
)

const (
	fileName = "session.json"
	keyInfo  = "cldzchat session v1"
)

var keySalt = []byte("cldzchat")

// ConfigDir returns ~/.config/cldzchat/<profile>, or "" when the home
// directory is unknown.
func ConfigDir(profile string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(home, ".config", "cldzchat", profile)
}

// FileStore keeps one identity per profile, encrypted with a key bound to
// the machine.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at the profile's config directory.
func NewFileStore(profile string) *FileStore {
	return &FileStore{Dir: ConfigDir(profile)}
}

func (f *FileStore) path() string {
	if f.Dir == "" {
		return ""
	}
	return filepath.Join(f.Dir, fileName)
}

// Load returns the stored identity, or nil when there is none or it cannot
// be read. A plaintext file from an older build is re-saved encrypted.
func (f *FileStore) Load() *models.Identity {
	p := f.path()
	if p == "" {
		return nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil
	}

	plain, err := decrypt(strings.TrimSpace(string(data)))
	if err != nil {
		var id models.Identity
		if err := json.Unmarshal(data, &id); err != nil || id.Validate() != nil {
			return nil
		}
		_ = f.Save(id)
		return &id
	}

	var id models.Identity
	if err := json.Unmarshal(plain, &id); err != nil {
		return nil
	}
	if id.Validate() != nil {
		return nil
	}
	return &id
}

func (f *FileStore) Save(id models.Identity) error {
	p := f.path()
	if p == "" {
		return errors.New("could not get config directory")
	}
	if err := os.MkdirAll(f.Dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	encrypted, err := encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}
	return os.WriteFile(p, []byte(encrypted), 0600)
}

// Clear removes the stored identity. A missing file is not an error.
func (f *FileStore) Clear() error {
	p := f.path()
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func machineID() string {
	for _, p := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(p)
		if err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id
			}
		}
	}
	hostname, _ := os.Hostname()
	return hostname
}

func encryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(machineID()), keySalt, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM() (cipher.AEAD, error) {
	key, err := encryptionKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(data []byte) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
