package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor seals secrets stored at rest, such as organizer OAuth tokens.
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewEncryptor creates an XChaCha20-Poly1305 encryptor from a 32-byte key.
func NewEncryptor(key []byte) (Encryptor, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	return &aeadEncryptor{aead: aead}, nil
}

// NewEncryptorFromBase64 decodes a standard base64 key first.
func NewEncryptorFromBase64(key string) (Encryptor, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	return NewEncryptor(raw)
}

type aeadEncryptor struct {
	aead cipher.AEAD
}

func (a *aeadEncryptor) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return a.aead.Seal(nonce, nonce, data, nil), nil
}

func (a *aeadEncryptor) Decrypt(data []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}
