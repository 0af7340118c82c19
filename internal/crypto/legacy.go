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
	"crypto/md5"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"
)

// Legacy ciphertexts use the OpenSSL passphrase format:
// base64("Salted__" || salt[8] || AES-256-CBC(PKCS#7(plaintext))).
const (
	legacyPrefix  = "U2FsdGVkX1" // base64 of "Salted__"
	legacyMagic   = "Salted__"
	legacySaltLen = 8
)

var (
	errLegacyFormat  = errors.New("invalid legacy ciphertext")
	errLegacyPadding = errors.New("invalid padding")
)

// IsLegacy reports whether ciphertext looks like a legacy OpenSSL-format value.
func IsLegacy(ciphertext string) bool {
	return strings.HasPrefix(ciphertext, legacyPrefix)
}

func openLegacy(encoded string, key Key) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) < len(legacyMagic)+legacySaltLen+aes.BlockSize || string(raw[:len(legacyMagic)]) != legacyMagic {
		return "", errLegacyFormat
	}

	salt := raw[len(legacyMagic) : len(legacyMagic)+legacySaltLen]
	body := raw[len(legacyMagic)+legacySaltLen:]
	if len(body)%aes.BlockSize != 0 {
		return "", errLegacyFormat
	}

	aesKey, iv := evpBytesToKey(key.passphrase(), salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, body)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", errLegacyFormat
	}
	return string(plaintext), nil
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and a single iteration.
func evpBytesToKey(passphrase, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var out, prev []byte
	for len(out) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+ivLen]
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errLegacyPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errLegacyPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errLegacyPadding
		}
	}
	return data[:len(data)-n], nil
}
