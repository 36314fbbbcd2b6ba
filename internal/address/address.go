// Package address implements the host chain's text address encoding.
package address

import (
	"crypto/sha512"
	"encoding/base32"
	"fmt"
)

// AddressLength is the length of an encoded address in characters.
const AddressLength = 58

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// FromPublicKey returns the address text corresponding to the provided
// 32-byte Ed25519 public key: base32(pk || SHA-512/256(pk)[:4]) with the
// padding stripped.
func FromPublicKey(pk []byte) (string, error) {
	if len(pk) != 32 {
		return "", fmt.Errorf("address: invalid public key size: %d", len(pk))
	}

	digest := sha512.Sum512_256(pk)

	raw := make([]byte, 0, 36)
	raw = append(raw, pk...)
	raw = append(raw, digest[:4]...)

	return encoding.EncodeToString(raw), nil
}
