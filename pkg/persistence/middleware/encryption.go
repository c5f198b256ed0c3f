package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// envelopePrefix marks the single system turn that carries the ciphertext.
const envelopePrefix = "turnstile:aes-gcm:v1:"

// ErrInvalidKey is returned for keys that are not 32 bytes long.
var ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")

// ErrNotEnvelope is returned when a stored thread was not written by the encryption middleware.
var ErrNotEnvelope = errors.New("thread is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 encoded 32 byte key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.CheckpointStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts threads using AES-GCM.
// The stored value is an envelope thread holding one opaque system turn; the
// thread id is bound as additional data so envelopes cannot be swapped between threads.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key: %w", ErrInvalidKey)
		}
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, threadID string, thread domain.Thread) error {
	plainText, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(threadID))
	if err != nil {
		return fmt.Errorf("failed to encrypt thread: %w", err)
	}

	envelope := domain.NewThread(threadID).
		Append(domain.NewSystemTurn(envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)))

	return m.next.Save(ctx, threadID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, threadID string) (domain.Thread, error) {
	envelope, err := m.next.Load(ctx, threadID)
	if err != nil {
		return domain.Thread{}, err
	}

	if envelope.Len() != 1 || envelope.Turns[0].Role != domain.RoleSystem ||
		!strings.HasPrefix(envelope.Turns[0].Content, envelopePrefix) {
		return domain.Thread{}, ErrNotEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(envelope.Turns[0].Content, envelopePrefix))
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, []byte(threadID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to decrypt thread: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal(plainText, &thread); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to unmarshal decrypted thread: %w", err)
	}
	return thread, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, threadID string) error {
	deleter, ok := m.next.(ports.Deleter)
	if !ok {
		return ports.ErrNotSupported
	}
	return deleter.Delete(ctx, threadID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	lister, ok := m.next.(ports.Lister)
	if !ok {
		return nil, ports.ErrNotSupported
	}
	return lister.List(ctx)
}

// Helpers

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, aad, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, aad, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, aad, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], aad)
}
