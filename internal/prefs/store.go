package prefs

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// lightweight per-user preference store (file, 0600) with AES-GCM obfuscation.
// Not a replacement for OS keychains but avoids plain-text preference files.

const fileName = "prefs.json"

// Fixed keys used by the engine.
const (
	KeyCanonicalCurrency = "currency.canonical"
	KeyFeatureFlags      = "features"
)

// Store reads and writes sealed preference values under a directory.
// The zero directory means the per-user config dir.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. Pass "" for the default location.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

type prefFile struct {
	Values map[string]string `json:"values"` // key -> base64(ciphertext)
}

// Set seals and stores value under key.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key required")
	}
	path, err := s.filePath()
	if err != nil {
		return err
	}
	pf, _ := load(path)
	if pf.Values == nil {
		pf.Values = map[string]string{}
	}
	ct, err := encrypt([]byte(value))
	if err != nil {
		return err
	}
	pf.Values[key] = base64.StdEncoding.EncodeToString(ct)
	return save(path, pf)
}

// Get opens the value stored under key. A missing key returns "" and no error.
func (s *Store) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key required")
	}
	path, err := s.filePath()
	if err != nil {
		return "", err
	}
	pf, err := load(path)
	if err != nil {
		return "", err
	}
	enc, ok := pf.Values[key]
	if !ok {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	pt, err := decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Delete removes key if present.
func (s *Store) Delete(key string) error {
	path, err := s.filePath()
	if err != nil {
		return err
	}
	pf, err := load(path)
	if err != nil {
		return err
	}
	delete(pf.Values, key)
	return save(path, pf)
}

// CanonicalCurrency returns the stored canonical currency code, or "" if unset.
func (s *Store) CanonicalCurrency() (string, error) {
	return s.Get(KeyCanonicalCurrency)
}

// SetCanonicalCurrency persists the canonical currency code.
func (s *Store) SetCanonicalCurrency(code string) error {
	return s.Set(KeyCanonicalCurrency, code)
}

// FeatureFlags returns the stored flag map. Missing store means no flags.
func (s *Store) FeatureFlags() (map[string]bool, error) {
	raw, err := s.Get(KeyFeatureFlags)
	if err != nil || raw == "" {
		return map[string]bool{}, err
	}
	var flags map[string]bool
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// SetFeatureFlags persists the flag map as JSON.
func (s *Store) SetFeatureFlags(flags map[string]bool) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return s.Set(KeyFeatureFlags, string(data))
}

func (s *Store) filePath() (string, error) {
	dir := s.dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "mizania")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // restrict directory
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func load(path string) (prefFile, error) {
	var pf prefFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefFile{}, nil
		}
		return pf, err
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		return pf, err
	}
	return pf, nil
}

func save(path string, pf prefFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func masterKey() []byte {
	user := os.Getenv("USER")
	base := fmt.Sprintf("mizania-%s-%s", runtime.GOOS, user)
	hash := sha256.Sum256([]byte(base))
	return hash[:]
}

func encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
