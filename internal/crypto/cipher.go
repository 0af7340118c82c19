// Copyright 2026 The Maintly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEncryptFailed is returned when a secret cannot be sealed.
var ErrEncryptFailed = errors.New("failed to encrypt secret")

// prefixV1 marks AES-256-GCM ciphertexts: "v1:" + base64(nonce || sealed).
const prefixV1 = "v1:"

// Outcome tells how Open produced its plaintext.
type Outcome int

const (
	// OutcomePassthrough means the input was returned unchanged: empty
	// input, a foreign key, corrupt data or a value that was never encrypted.
	OutcomePassthrough Outcome = iota
	// OutcomeDecrypted means a v1 ciphertext was opened.
	OutcomeDecrypted
	// OutcomeLegacy means a legacy OpenSSL-format ciphertext was opened.
	OutcomeLegacy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDecrypted:
		return "decrypted"
	case OutcomeLegacy:
		return "legacy"
	default:
		return "passthrough"
	}
}

// Result is the outcome of opening a single stored secret.
type Result struct {
	Plaintext string
	Outcome   Outcome
}

// Cipher seals and opens vault secrets with keys re-derived per subject.
// It holds no key material.
type Cipher struct {
	rand io.Reader
}

// New creates a cipher reading nonces from crypto/rand.
func New() *Cipher {
	return &Cipher{rand: rand.Reader}
}

// NewWithRand creates a cipher with a custom nonce source.
func NewWithRand(r io.Reader) *Cipher {
	return &Cipher{rand: r}
}

var std = New()

// Encrypt seals plaintext with the default cipher.
func Encrypt(plaintext, subjectID string) (string, error) {
	return std.Encrypt(plaintext, subjectID)
}

// Decrypt opens ciphertext with the default cipher.
func Decrypt(ciphertext, subjectID string) string {
	return std.Decrypt(ciphertext, subjectID)
}

// Encrypt seals plaintext under the key derived from subjectID.
// Empty plaintext or subjectID is returned unchanged.
func (c *Cipher) Encrypt(plaintext, subjectID string) (string, error) {
	if plaintext == "" || subjectID == "" {
		return plaintext, nil
	}

	key := DeriveKey(subjectID)
	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrEncryptFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefixV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext under the key derived from subjectID.
// On any failure the stored value is returned unchanged.
func (c *Cipher) Decrypt(ciphertext, subjectID string) string {
	return c.Open(ciphertext, subjectID).Plaintext
}

// Open is Decrypt with the outcome exposed.
func (c *Cipher) Open(ciphertext, subjectID string) Result {
	passthrough := Result{Plaintext: ciphertext, Outcome: OutcomePassthrough}
	if ciphertext == "" || subjectID == "" {
		return passthrough
	}

	if strings.HasPrefix(ciphertext, prefixV1) {
		plaintext, err := openV1(strings.TrimPrefix(ciphertext, prefixV1), DeriveKey(subjectID))
		if err != nil {
			return passthrough
		}
		return Result{Plaintext: plaintext, Outcome: OutcomeDecrypted}
	}

	if IsLegacy(ciphertext) {
		for _, key := range legacyKeys(subjectID) {
			plaintext, err := openLegacy(ciphertext, key)
			if err == nil && plaintext != "" {
				return Result{Plaintext: plaintext, Outcome: OutcomeLegacy}
			}
		}
		return passthrough
	}

	return passthrough
}

// Reseal re-encrypts a legacy ciphertext into the current format.
// It reports false when the value is not a legacy ciphertext readable
// with subjectID; the value is then returned unchanged.
func (c *Cipher) Reseal(ciphertext, subjectID string) (string, bool, error) {
	res := c.Open(ciphertext, subjectID)
	if res.Outcome != OutcomeLegacy {
		return ciphertext, false, nil
	}
	sealed, err := c.Encrypt(res.Plaintext, subjectID)
	if err != nil {
		return ciphertext, false, err
	}
	return sealed, true, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func openV1(encoded string, key Key) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize()+gcm.Overhead() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
