// Package eddsa implements detached Ed25519 signing for extended keys
// whose secret scalar is already in post-clamp form.
//
// This differs from RFC 8032 in two respects: there is no per-sign SHA-512
// expansion of a seed (the derived kL is the scalar), and the nonce is
// seeded from the right half kR of the derived extended key.  Verification
// is plain Ed25519 and interoperates with any conformant verifier.
package eddsa

import (
	"crypto/sha512"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/curve"
	"github.com/oasisprotocol/curve25519-voi/curve/scalar"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/algorandfoundation/xhd-wallet-go/internal/bip32"
)

// SignatureSize is the size of a detached signature in bytes.
const SignatureSize = 64

// Sign signs message with the extended key and returns the 64-byte
// detached signature R || S.
func Sign(key *bip32.ExtendedKey, message []byte) ([]byte, error) {
	// A = kL*G.
	a, err := key.PublicKeyBytes()
	if err != nil {
		return nil, err
	}

	// r = H512(kR || M) mod L.
	h := sha512.New()
	_, _ = h.Write(key.KR[:])
	_, _ = h.Write(message)
	var r scalar.Scalar
	if _, err := r.SetBytesModOrderWide(h.Sum(nil)); err != nil {
		return nil, fmt.Errorf("eddsa: failed to reduce nonce (%v): %w", err, bip32.ErrCryptoBackend)
	}

	// R = r*G.
	var (
		rPoint      curve.EdwardsPoint
		rCompressed curve.CompressedEdwardsY
	)
	rCompressed.SetEdwardsPoint(rPoint.MulBasepoint(curve.ED25519_BASEPOINT_TABLE, &r))

	// h = H512(R || A || M) mod L.
	h = sha512.New()
	_, _ = h.Write(rCompressed[:])
	_, _ = h.Write(a)
	_, _ = h.Write(message)
	var hram scalar.Scalar
	if _, err := hram.SetBytesModOrderWide(h.Sum(nil)); err != nil {
		return nil, fmt.Errorf("eddsa: failed to reduce h (%v): %w", err, bip32.ErrCryptoBackend)
	}

	// S = r + h*kL mod L.  kL is wide-reduced first; the reduction does
	// not change the value mod L.
	var wide [scalar.ScalarWideSize]byte
	copy(wide[:], key.KL[:])
	var kL scalar.Scalar
	if _, err := kL.SetBytesModOrderWide(wide[:]); err != nil {
		return nil, fmt.Errorf("eddsa: failed to reduce kL (%v): %w", err, bip32.ErrCryptoBackend)
	}
	var s scalar.Scalar
	s.Mul(&hram, &kL)
	s.Add(&s, &r)

	sig := make([]byte, SignatureSize)
	copy(sig[:32], rCompressed[:])
	if err := s.ToBytes(sig[32:]); err != nil {
		return nil, fmt.Errorf("eddsa: failed to serialize S (%v): %w", err, bip32.ErrCryptoBackend)
	}
	return sig, nil
}

// Verify reports whether sig is a valid detached Ed25519 signature of
// message under publicKey.
func Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}
