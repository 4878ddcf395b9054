package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// secretsFileName is the AES-256-GCM sealed JSON map inside the data dir
const secretsFileName = "secrets.enc"

// EncryptedProvider reads secrets from an encrypted file on disk.
// The file is decrypted once when the provider is created.
type EncryptedProvider struct {
	secrets map[string]string
}

// NewEncryptedProvider opens the secrets file in dataDir. A missing file
// yields a provider with no secrets.
func NewEncryptedProvider(encryptionKey, dataDir string) (*EncryptedProvider, error) {
	key, err := decodeKey(encryptionKey)
	if err != nil {
		return nil, err
	}

	p := &EncryptedProvider{secrets: make(map[string]string)}

	data, err := os.ReadFile(filepath.Join(dataDir, secretsFileName))
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	plaintext, err := decrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	if err := json.Unmarshal(plaintext, &p.secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}

	return p, nil
}

// Get retrieves a secret by key
func (p *EncryptedProvider) Get(_ context.Context, key string) (string, error) {
	value, ok := p.secrets[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EncryptedProvider) Name() string {
	return "encrypted"
}

// WriteEncryptedFile seals secrets into dataDir for NewEncryptedProvider
func WriteEncryptedFile(encryptionKey, dataDir string, secrets map[string]string) error {
	key, err := decodeKey(encryptionKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to serialize secrets: %w", err)
	}

	ciphertext, err := encrypt(key, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}

	// Write to file atomically
	path := filepath.Join(dataDir, secretsFileName)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename secrets file: %w", err)
	}

	return nil
}

// GenerateKey generates a new 256-bit encryption key
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: encryption key is required", ErrInvalidKey)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode encryption key: %v", ErrInvalidKey, err)
	}

	// Key must be 32 bytes for AES-256
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be 32 bytes (256 bits), got %d", ErrInvalidKey, len(key))
	}
	return key, nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
