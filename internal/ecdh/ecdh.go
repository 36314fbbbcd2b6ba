// Package ecdh implements X25519 key agreement between two wallets holding
// BIP32-Ed25519 derived keys.
//
// Both Ed25519 public keys are converted to their Montgomery form, the
// shared point is computed with the local kL as the X25519 scalar, and the
// secret is the BLAKE2b-256 digest of the shared point concatenated with
// both parties' Montgomery keys in the caller-chosen order.  Binding the
// public keys into the digest rules out unknown-key-share confusion; the
// ordering flag is part of the wire contract and both parties must agree
// on who goes first.
package ecdh

import (
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"
	"golang.org/x/crypto/blake2b"

	"github.com/algorandfoundation/xhd-wallet-go/internal/bip32"
)

// SharedSecretSize is the size of the derived shared secret in bytes.
const SharedSecretSize = 32

// SharedSecret computes the shared secret between the local extended key
// and the peer's Ed25519 public key.
func SharedSecret(key *bip32.ExtendedKey, peerPublicKey []byte, meFirst bool) ([]byte, error) {
	if len(peerPublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ecdh: invalid peer public key size: %d", len(peerPublicKey))
	}

	own, err := key.PublicKeyBytes()
	if err != nil {
		return nil, err
	}
	ownMont, ok := x25519.EdPublicKeyToX25519(ed25519.PublicKey(own))
	if !ok {
		return nil, fmt.Errorf("ecdh: own public key has no montgomery form: %w", bip32.ErrCryptoBackend)
	}
	peerMont, ok := x25519.EdPublicKeyToX25519(ed25519.PublicKey(peerPublicKey))
	if !ok {
		return nil, fmt.Errorf("ecdh: peer public key has no montgomery form: %w", bip32.ErrCryptoBackend)
	}

	// kL is used as the X25519 scalar directly; the RFC 7748 masking the
	// scalar multiplication applies is idempotent on the clamp bits kL
	// already carries.
	shared, err := x25519.X25519(key.KL[:], peerMont)
	if err != nil {
		return nil, fmt.Errorf("ecdh: scalar multiplication failed (%v): %w", err, bip32.ErrCryptoBackend)
	}

	buf := make([]byte, 0, 3*32)
	buf = append(buf, shared...)
	if meFirst {
		buf = append(buf, ownMont...)
		buf = append(buf, peerMont...)
	} else {
		buf = append(buf, peerMont...)
		buf = append(buf, ownMont...)
	}

	sum := blake2b.Sum256(buf)
	return sum[:], nil
}
