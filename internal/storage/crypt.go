package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted layout: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const (
	gcmMagic   = "SSGCM001"
	saltSize   = 16
	nonceSize  = 12
	tagSize    = 16
	kdfRounds  = 100000
	keySize    = 32
	headerSize = len(gcmMagic) + saltSize + nonceSize
)

// ErrWrongFormat is returned when decrypting data that was not produced by encrypt.
var ErrWrongFormat = errors.New("not an encrypted object")

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func encrypt(data []byte, password string) ([]byte, error) {
	out := make([]byte, headerSize, headerSize+len(data)+tagSize)
	copy(out, gcmMagic)
	salt := out[len(gcmMagic) : len(gcmMagic)+saltSize]
	nonce := out[len(gcmMagic)+saltSize : headerSize]
	if _, err := io.ReadFull(rand.Reader, out[len(gcmMagic):headerSize]); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(out, nonce, data, []byte(gcmMagic)), nil
}

func decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < headerSize+tagSize || string(data[:len(gcmMagic)]) != gcmMagic {
		return nil, ErrWrongFormat
	}
	salt := data[len(gcmMagic) : len(gcmMagic)+saltSize]
	nonce := data[len(gcmMagic)+saltSize : headerSize]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[headerSize:], []byte(gcmMagic))
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}
