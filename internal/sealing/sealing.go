// Package sealing encrypts message content at rest with a per-user key.
//
// Keys are derived with HKDF-SHA256 from a server-held secret, using the user id as the
// HKDF info, so knowing a user id is not enough to read that user's messages.
package sealing

import (
  "crypto/rand"
  "crypto/sha256"
  "encoding/base64"
  "errors"
  "fmt"
  "io"
  "strings"

  "github.com/google/uuid"
  "golang.org/x/crypto/chacha20poly1305"
  "golang.org/x/crypto/hkdf"
)

const prefix = "sealed:v1:"

var ErrOpen = errors.New("sealed content could not be opened")

type Sealer struct {
  secret []byte
}

// New returns nil for an empty secret; a nil *Sealer passes content through unchanged.
func New(secret string) *Sealer {
  if secret == "" {
    return nil
  }
  return &Sealer{secret: []byte(secret)}
}

func (s *Sealer) Enabled() bool {
  return s != nil
}

func (s *Sealer) key(userID uuid.UUID) ([]byte, error) {
  r := hkdf.New(sha256.New, s.secret, []byte("tutor-message-seal"), userID[:])
  key := make([]byte, chacha20poly1305.KeySize)
  if _, err := io.ReadFull(r, key); err != nil {
    return nil, fmt.Errorf("failed to derive key: %w", err)
  }
  return key, nil
}

func (s *Sealer) Seal(userID uuid.UUID, plaintext string) (string, error) {
  if s == nil {
    return plaintext, nil
  }
  key, err := s.key(userID)
  if err != nil {
    return "", err
  }
  aead, err := chacha20poly1305.NewX(key)
  if err != nil {
    return "", fmt.Errorf("failed to init cipher: %w", err)
  }
  nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
  if _, err := rand.Read(nonce); err != nil {
    return "", fmt.Errorf("failed to read nonce: %w", err)
  }
  sealed := aead.Seal(nonce, nonce, []byte(plaintext), userID[:])
  return prefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (s *Sealer) Open(userID uuid.UUID, value string) (string, error) {
  if !strings.HasPrefix(value, prefix) {
    return value, nil
  }
  if s == nil {
    return "", fmt.Errorf("%w: no seal key configured", ErrOpen)
  }
  raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
  if err != nil {
    return "", fmt.Errorf("%w: %v", ErrOpen, err)
  }
  key, err := s.key(userID)
  if err != nil {
    return "", err
  }
  aead, err := chacha20poly1305.NewX(key)
  if err != nil {
    return "", fmt.Errorf("failed to init cipher: %w", err)
  }
  if len(raw) < aead.NonceSize() {
    return "", fmt.Errorf("%w: value too short", ErrOpen)
  }
  nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
  plain, err := aead.Open(nil, nonce, ciphertext, userID[:])
  if err != nil {
    return "", fmt.Errorf("%w: %v", ErrOpen, err)
  }
  return string(plain), nil
}
