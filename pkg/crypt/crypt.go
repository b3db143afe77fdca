// Package crypt 分享payload的对称加密封装
//
// enc_payload格式：base64(nonce || ciphertext)，密钥由领取口令派生。
// aes_version选择派生与封装方案，当前仅有版本1（SHA-256派生 + AES-256-GCM）。
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const AesVersionLatest = 1

func deriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// Seal 加密payload
func Seal(plaintext []byte, password string, aesVersion int) (string, error) {
	if aesVersion != 1 {
		return "", fmt.Errorf("unsupported aes_version: %d", aesVersion)
	}

	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open 解密payload
func Open(encoded, password string, aesVersion int) ([]byte, error) {
	if aesVersion != 1 {
		return nil, fmt.Errorf("unsupported aes_version: %d", aesVersion)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed enc_payload: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("enc_payload too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return plaintext, nil
}
