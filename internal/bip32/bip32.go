// Package bip32 implements the ARC-0052 variant of BIP32-Ed25519 extended
// key derivation.
//
// Extended private keys are 96 byte (kL || kR || c) tuples, where kL is the
// signing scalar in post-clamp little-endian form, kR diversifies hardened
// derivations and seeds the signing nonce, and c is the chain code.  The
// scheme operates on the raw 256-bit integers rather than the scalar field,
// so child scalars must be bounded explicitly (see applyZ).
package bip32

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/curve"
	"github.com/oasisprotocol/curve25519-voi/curve/scalar"
)

const (
	// SeedSize is the size of a BIP-39 seed byte sequence in bytes.
	SeedSize = 64

	// ExtendedKeySize is the size of an extended private key in bytes.
	ExtendedKeySize = 96

	// ExtendedPublicKeySize is the size of an extended public key in bytes.
	ExtendedPublicKeySize = 64

	// PublicKeySize is the size of a compressed Ed25519 public key in bytes.
	PublicKeySize = 32

	// ChainCodeSize is the size of a chain code in bytes.
	ChainCodeSize = 32

	// HardenedIndexOffset is the offset added to derivation indexes to
	// indicate that the hardened formula should be used.
	HardenedIndexOffset = uint32(1) << 31

	// The root discard loop terminates after a single iteration with
	// overwhelming probability; the cap exists so a hostile seed cannot
	// spin forever.
	maxSeedRetries = 256
)

var (
	// ErrDerivationOverflow is the error returned when a derived kL would
	// leave the 255-bit range the scheme is safe in.  The requested path is
	// not derivable with the requested profile.
	ErrDerivationOverflow = errors.New("bip32: derived key out of range")

	// ErrInvalidIndex is the error returned when a hardened index is used
	// where only soft derivation is possible.
	ErrInvalidIndex = errors.New("bip32: hardened index in public derivation")

	// ErrSeedRejected is the error returned when the root discard loop did
	// not terminate within the retry cap.
	ErrSeedRejected = errors.New("bip32: seed rejected")

	// ErrCryptoBackend is the error returned when the underlying curve
	// library rejects a value.
	ErrCryptoBackend = errors.New("bip32: crypto backend failure")
)

// Profile selects the derivation safety profile.  The profile value is the
// number of top bits of zL that are zeroed before the scalar update, which
// in turn bounds the usable derivation depth: each step adds at most
// 8*(2^(256-g) - 1) to kL, and the root construction leaves 2^253 of
// headroom below the 2^255 ceiling, so the safe depth is 2^(g-6).
type Profile int

const (
	// ProfileKhovratovich zeroes the top 32 bits of zL, per the original
	// BIP32-Ed25519 paper.  Safe to depth 2^26.
	ProfileKhovratovich Profile = iota

	// ProfilePeikert zeroes only the top 9 bits of zL, retaining more of
	// the HMAC output for randomisation.  Safe to depth 8.
	ProfilePeikert
)

func (p Profile) zeroBits() uint {
	switch p {
	case ProfilePeikert:
		return 9
	default:
		return 32
	}
}

// String returns the name of the profile.
func (p Profile) String() string {
	switch p {
	case ProfilePeikert:
		return "Peikert"
	case ProfileKhovratovich:
		return "Khovratovich"
	default:
		return fmt.Sprintf("[unknown profile: %d]", int(p))
	}
}

// ExtendedKey is an extended private key.
type ExtendedKey struct {
	KL [32]byte
	KR [32]byte
	C  [ChainCodeSize]byte
}

// ExtendedPublicKey is an extended public key.
type ExtendedPublicKey struct {
	A [PublicKeySize]byte
	C [ChainCodeSize]byte
}

// NewRoot derives the root extended key from a 64-byte BIP-39 seed.
func NewRoot(seed []byte) (*ExtendedKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("bip32: invalid seed size: %d", len(seed))
	}

	// k = H512(seed), split into kL || kR.
	var k ExtendedKey
	sum := sha512.Sum512(seed)
	copy(k.KL[:], sum[:32])
	copy(k.KR[:], sum[32:])

	// While the third highest bit of the last byte of kL is set, replace
	// k with HMAC-SHA512(key=kL, msg=kR).  Subsequent derivation depth
	// accounting relies on this bit staying zero at the root.
	for i := 0; k.KL[31]&0x20 != 0; i++ {
		if i >= maxSeedRetries {
			return nil, ErrSeedRejected
		}
		mac := hmac.New(sha512.New, k.KL[:])
		_, _ = mac.Write(k.KR[:])
		sum := mac.Sum(nil)
		copy(k.KL[:], sum[:32])
		copy(k.KR[:], sum[32:])
	}

	clampScalar(k.KL[:])

	// c = H256(0x01 || seed).
	h := sha256.New()
	_, _ = h.Write([]byte{0x01})
	_, _ = h.Write(seed)
	copy(k.C[:], h.Sum(nil))

	return &k, nil
}

// ExtendedKeyFromBytes deserializes a 96-byte extended private key.
func ExtendedKeyFromBytes(b []byte) (*ExtendedKey, error) {
	if len(b) != ExtendedKeySize {
		return nil, fmt.Errorf("bip32: invalid extended key size: %d", len(b))
	}
	var k ExtendedKey
	copy(k.KL[:], b[:32])
	copy(k.KR[:], b[32:64])
	copy(k.C[:], b[64:])
	return &k, nil
}

// Bytes serializes the extended private key as kL || kR || c.
func (k *ExtendedKey) Bytes() []byte {
	b := make([]byte, 0, ExtendedKeySize)
	b = append(b, k.KL[:]...)
	b = append(b, k.KR[:]...)
	b = append(b, k.C[:]...)
	return b
}

// PublicKeyBytes returns the compressed Ed25519 public key kL*G.  The
// scalar is already in post-clamp form, so no clamping is applied.
func (k *ExtendedKey) PublicKeyBytes() ([]byte, error) {
	a, err := scalarMulBase(k.KL[:])
	if err != nil {
		return nil, err
	}
	return append([]byte{}, a[:]...), nil
}

// Public returns the extended public key A || c.
func (k *ExtendedKey) Public() (*ExtendedPublicKey, error) {
	a, err := scalarMulBase(k.KL[:])
	if err != nil {
		return nil, err
	}
	var pub ExtendedPublicKey
	copy(pub.A[:], a[:])
	pub.C = k.C
	return &pub, nil
}

// Zeroize clears the key material.
func (k *ExtendedKey) Zeroize() {
	for i := range k.KL {
		k.KL[i] = 0
		k.KR[i] = 0
		k.C[i] = 0
	}
}

// DeriveChild derives the child extended private key with the provided
// index, hardened iff index >= HardenedIndexOffset.
func (k *ExtendedKey) DeriveChild(index uint32, profile Profile) (*ExtendedKey, error) {
	var iBytes [4]byte
	binary.LittleEndian.PutUint32(iBytes[:], index)

	var z, c []byte
	if index >= HardenedIndexOffset {
		// Z = F_c(0x00 || kL || kR || i), c' = F_c(0x01 || kL || kR || i)
		z = hmacSHA512(k.C[:], []byte{0x00}, k.KL[:], k.KR[:], iBytes[:])
		c = hmacSHA512(k.C[:], []byte{0x01}, k.KL[:], k.KR[:], iBytes[:])
	} else {
		// Soft derivation feeds A = kL*G into the HMAC instead of the
		// private halves.
		a, err := scalarMulBase(k.KL[:])
		if err != nil {
			return nil, err
		}
		z = hmacSHA512(k.C[:], []byte{0x02}, a[:], iBytes[:])
		c = hmacSHA512(k.C[:], []byte{0x03}, a[:], iBytes[:])
	}

	kL, kR, err := applyZ(&k.KL, &k.KR, z, profile.zeroBits())
	if err != nil {
		return nil, err
	}

	child := &ExtendedKey{KL: kL, KR: kR}
	copy(child.C[:], c[32:]) // the chain code is the right half of F
	return child, nil
}

// DerivePath derives the extended private key at the end of a derivation
// path, starting from k.
func (k *ExtendedKey) DerivePath(path []uint32, profile Profile) (*ExtendedKey, error) {
	node := k
	for _, index := range path {
		child, err := node.DeriveChild(index, profile)
		if err != nil {
			return nil, fmt.Errorf("bip32: failed to derive child %d: %w", index, err)
		}
		if node != k {
			node.Zeroize()
		}
		node = child
	}
	if node == k {
		// Zero-length path; hand back a copy so the caller can zeroize
		// freely.
		cp := *k
		node = &cp
	}
	return node, nil
}

// ExtendedPublicKeyFromBytes deserializes a 64-byte extended public key.
func ExtendedPublicKeyFromBytes(b []byte) (*ExtendedPublicKey, error) {
	if len(b) != ExtendedPublicKeySize {
		return nil, fmt.Errorf("bip32: invalid extended public key size: %d", len(b))
	}
	var pub ExtendedPublicKey
	copy(pub.A[:], b[:32])
	copy(pub.C[:], b[32:])
	return &pub, nil
}

// Bytes serializes the extended public key as A || c.
func (p *ExtendedPublicKey) Bytes() []byte {
	b := make([]byte, 0, ExtendedPublicKeySize)
	b = append(b, p.A[:]...)
	b = append(b, p.C[:]...)
	return b
}

// DeriveChild derives the child extended public key with the provided
// non-hardened index, without access to any private material.  The leading
// 32 bytes of the result equal the public key of the corresponding private
// derivation.
func (p *ExtendedPublicKey) DeriveChild(index uint32, profile Profile) (*ExtendedPublicKey, error) {
	if index >= HardenedIndexOffset {
		return nil, ErrInvalidIndex
	}

	var iBytes [4]byte
	binary.LittleEndian.PutUint32(iBytes[:], index)

	z := hmacSHA512(p.C[:], []byte{0x02}, p.A[:], iBytes[:])
	c := hmacSHA512(p.C[:], []byte{0x03}, p.A[:], iBytes[:])

	// A' = A + (8*zL)*G, with zL truncated per the profile.
	var zL [32]byte
	copy(zL[:], z[:32])
	truncateTopBits(&zL, profile.zeroBits())
	z8 := mulBy8(&zL)

	var wide [scalar.ScalarWideSize]byte
	copy(wide[:], z8[:])
	var t scalar.Scalar
	if _, err := t.SetBytesModOrderWide(wide[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize zL (wide): %v", ErrCryptoBackend, err)
	}

	var aCompressed curve.CompressedEdwardsY
	if _, err := aCompressed.SetBytes(p.A[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize A: %v", ErrCryptoBackend, err)
	}
	var a curve.EdwardsPoint
	if _, err := a.SetCompressedY(&aCompressed); err != nil {
		return nil, fmt.Errorf("%w: failed to decompress A: %v", ErrCryptoBackend, err)
	}

	var tG curve.EdwardsPoint
	tG.MulBasepoint(curve.ED25519_BASEPOINT_TABLE, &t)
	var sum curve.EdwardsPoint
	sum.Add(&a, &tG)

	var child ExtendedPublicKey
	var sumCompressed curve.CompressedEdwardsY
	sumCompressed.SetEdwardsPoint(&sum)
	copy(child.A[:], sumCompressed[:])
	copy(child.C[:], c[32:])
	return &child, nil
}

// applyZ computes the child kL and kR halves from the parent halves and the
// 64-byte HMAC output z:
//
//	kL' = kL + 8*trunc(zL)
//	kR' = (kR + zR) mod 2^256
//
// trunc zeroes the top zeroBits bits of zL.  A kL' that would reach 2^255
// is rejected with ErrDerivationOverflow: the extended-key invariant keeps
// bit 7 of kL[31] clear, and the profile depth bound is exactly the number
// of worst-case steps the root headroom below 2^255 can absorb.
func applyZ(kL, kR *[32]byte, z []byte, zeroBits uint) ([32]byte, [32]byte, error) {
	var zL [32]byte
	copy(zL[:], z[:32])
	truncateTopBits(&zL, zeroBits)

	// kL' = kL + 8*zL, evaluated over raw 256-bit integers.
	var childKL [32]byte
	var carry uint16
	for i := 0; i < 32; i++ {
		tmp := uint16(kL[i]) + 8*uint16(zL[i]) + carry
		childKL[i] = byte(tmp & 0xff)
		carry = tmp >> 8
	}
	if carry != 0 || childKL[31]&0x80 != 0 {
		return [32]byte{}, [32]byte{}, ErrDerivationOverflow
	}

	// kR' = kR + zR mod 2^256, the overflowing high bytes are discarded.
	var childKR [32]byte
	carry = 0
	for i := 0; i < 32; i++ {
		tmp := uint16(kR[i]) + uint16(z[32+i]) + carry
		childKR[i] = byte(tmp & 0xff)
		carry = tmp >> 8
	}

	return childKL, childKR, nil
}

// truncateTopBits zeroes the top n bits of the little-endian value b.
func truncateTopBits(b *[32]byte, n uint) {
	for i := 31; i >= 0 && n > 0; i-- {
		if n >= 8 {
			b[i] = 0
			n -= 8
		} else {
			b[i] &= 0xff >> n
			n = 0
		}
	}
}

// mulBy8 returns 8*t over 256-bit integers.  Truncated zL values are at
// most 2^247 - 1, so the shift cannot carry out of 32 bytes.
func mulBy8(t *[32]byte) [32]byte {
	var out [32]byte
	var carry uint16
	for i := 0; i < 32; i++ {
		tmp := uint16(t[i])<<3 | carry
		out[i] = byte(tmp & 0xff)
		carry = tmp >> 8
	}
	return out
}

// scalarMulBase computes the compressed Ed25519 point b*G.  b is a 256-bit
// little-endian integer; reduction modulo the group order does not change
// the resulting point, so this is the no-clamp base multiplication the
// scheme calls for.
func scalarMulBase(b []byte) (*curve.CompressedEdwardsY, error) {
	var wide [scalar.ScalarWideSize]byte
	copy(wide[:], b)
	var s scalar.Scalar
	if _, err := s.SetBytesModOrderWide(wide[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize kL (wide): %v", ErrCryptoBackend, err)
	}

	var (
		a           curve.EdwardsPoint
		aCompressed curve.CompressedEdwardsY
	)
	aCompressed.SetEdwardsPoint(a.MulBasepoint(curve.ED25519_BASEPOINT_TABLE, &s))
	return &aCompressed, nil
}

func hmacSHA512(key []byte, chunks ...[]byte) []byte {
	mac := hmac.New(sha512.New, key)
	for _, chunk := range chunks {
		_, _ = mac.Write(chunk)
	}
	return mac.Sum(nil)
}

func clampScalar(s []byte) []byte {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
	return s
}
