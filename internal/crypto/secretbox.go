package crypto

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// SealJSON serializes data as JSON and encrypts it with NaCl SecretBox
// (XSalsa20-Poly1305) under the given 32-byte secret.
//
// Format: [nonce (24 bytes)][ciphertext + auth tag]
func SealJSON(data interface{}, secret *[32]byte) ([]byte, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted := secretbox.Seal(nil, plaintext, &nonce, secret)

	result := make([]byte, 24+len(encrypted))
	copy(result[0:24], nonce[:])
	copy(result[24:], encrypted)

	return result, nil
}

// OpenJSON decrypts a SealJSON payload and unmarshals the plaintext into
// target.
func OpenJSON(encrypted []byte, secret *[32]byte, target interface{}) error {
	if len(encrypted) < 24 {
		return fmt.Errorf("encrypted data too short")
	}

	var nonce [24]byte
	copy(nonce[:], encrypted[0:24])

	decrypted, ok := secretbox.Open(nil, encrypted[24:], &nonce, secret)
	if !ok {
		return fmt.Errorf("decryption failed")
	}

	if err := json.Unmarshal(decrypted, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}
