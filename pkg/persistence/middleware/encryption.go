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

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/aretw0/agrobot/pkg/ports"
)

// envelopePrefix marks a text part that carries an encrypted message.
const envelopePrefix = "enc:v1:"

// KeySize is the AES-256 key length.
const KeySize = 32

// ErrNotEncrypted is returned when a stored entry is not an envelope.
var ErrNotEncrypted = errors.New("history entry is missing encrypted envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new entries. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when the active key cannot decrypt an entry,
	// so keys can be rotated while old entries are still in the window.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.HistoryStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals every message with AES-GCM before it reaches
// the backend. Roles stay readable so the entry count and turn shape are
// unchanged; text and images are not.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != KeySize {
		return nil, fmt.Errorf("active key must be %d bytes (AES-256)", KeySize)
	}
	for i, k := range config.FallbackKeys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("fallback key %d must be %d bytes (AES-256)", i, KeySize)
		}
	}
	return func(next ports.HistoryStore) ports.HistoryStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Append(ctx context.Context, key string, limit int, msgs ...domain.Message) (int, error) {
	sealed := make([]domain.Message, len(msgs))
	for i, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return 0, err
		}
		plainText, err := json.Marshal(msg)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal message: %w", err)
		}
		ciphertext, err := encrypt(plainText, m.config.ActiveKey)
		if err != nil {
			return 0, fmt.Errorf("failed to encrypt message: %w", err)
		}
		sealed[i] = domain.NewTextMessage(msg.Role, envelopePrefix+base64.StdEncoding.EncodeToString(ciphertext))
	}
	return m.next.Append(ctx, key, limit, sealed...)
}

func (m *encryptionMiddleware) Window(ctx context.Context, key string, n int) ([]domain.Message, error) {
	sealed, err := m.next.Window(ctx, key, n)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Message, len(sealed))
	for i, env := range sealed {
		msg, err := m.open(env)
		if err != nil {
			return nil, err
		}
		out[i] = msg
	}
	return out, nil
}

func (m *encryptionMiddleware) open(env domain.Message) (domain.Message, error) {
	encoded, ok := strings.CutPrefix(env.Text(), envelopePrefix)
	if !ok || len(env.Parts) != 1 {
		return domain.Message{}, ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to decrypt message: %w", err)
	}

	var msg domain.Message
	if err := json.Unmarshal(plainText, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("failed to unmarshal decrypted message: %w", err)
	}
	return msg, nil
}

func (m *encryptionMiddleware) Len(ctx context.Context, key string) (int, error) {
	return m.next.Len(ctx, key)
}

func (m *encryptionMiddleware) Reset(ctx context.Context, key string) error {
	return m.next.Reset(ctx, key)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
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

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
