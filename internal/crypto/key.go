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
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. Changing any of these makes every stored
// ciphertext unreadable, so they are fixed.
const (
	keySalt       = "maintly-security-salt-2024"
	keyIterations = 10000

	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32
)

// Key is a symmetric key derived from a subject identifier.
type Key [KeySize]byte

// DeriveKey derives the encryption key for subjectID with PBKDF2-HMAC-SHA1.
//
// The result depends only on subjectID and the fixed salt: the same input
// yields the same key in every process, and nothing is ever stored.
// An empty subjectID is the caller's responsibility to avoid.
func DeriveKey(subjectID string) Key {
	var k Key
	copy(k[:], pbkdf2.Key([]byte(subjectID), []byte(keySalt), keyIterations, KeySize, sha1.New))
	return k
}

// legacyKeys returns the keys legacy ciphertexts may have been sealed
// under: the SHA-1 derivation, then the same derivation with HMAC-SHA256,
// which later client library versions used by default.
func legacyKeys(subjectID string) [2]Key {
	var k256 Key
	copy(k256[:], pbkdf2.Key([]byte(subjectID), []byte(keySalt), keyIterations, KeySize, sha256.New))
	return [2]Key{DeriveKey(subjectID), k256}
}

// passphrase returns the lowercase hex form of the key, which legacy
// ciphertexts used as an OpenSSL passphrase.
func (k Key) passphrase() []byte {
	dst := make([]byte, hex.EncodedLen(KeySize))
	hex.Encode(dst, k[:])
	return dst
}
