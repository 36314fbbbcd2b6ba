// Package xhdwallet implements an extended hierarchical deterministic
// wallet core for Ed25519/Curve25519 per ARC-0052.
//
// A Wallet is constructed from a 64-byte BIP-39 seed and is immutable
// thereafter.  Every operation re-derives the extended root key from the
// seed, walks the requested BIP-44 path, and discards the intermediate
// material; the wallet holds no caches and is safe to share read-only.
package xhdwallet

import (
	"encoding/json"
	"fmt"

	"github.com/algorandfoundation/xhd-wallet-go/internal/address"
	"github.com/algorandfoundation/xhd-wallet-go/internal/bip32"
	"github.com/algorandfoundation/xhd-wallet-go/internal/dataguard"
	"github.com/algorandfoundation/xhd-wallet-go/internal/ecdh"
	"github.com/algorandfoundation/xhd-wallet-go/internal/eddsa"
)

const (
	// SeedSize is the size of the BIP-39 seed a wallet is built from.
	SeedSize = bip32.SeedSize

	// PublicKeySize is the size of a derived public key in bytes.
	PublicKeySize = bip32.PublicKeySize

	// SignatureSize is the size of a detached signature in bytes.
	SignatureSize = eddsa.SignatureSize

	// SharedSecretSize is the size of an ECDH shared secret in bytes.
	SharedSecretSize = ecdh.SharedSecretSize

	// bip44Purpose is the BIP-44 purpose field.
	bip44Purpose = uint32(44)
)

// Profile selects the derivation safety profile.
type Profile = bip32.Profile

const (
	// ProfileKhovratovich is the original BIP32-Ed25519 paper profile,
	// safe to derivation depth 2^26.
	ProfileKhovratovich = bip32.ProfileKhovratovich

	// ProfilePeikert is the conservative profile, safe to depth 8.
	ProfilePeikert = bip32.ProfilePeikert
)

// Encoding identifies how a SignData payload is encoded.
type Encoding = dataguard.Encoding

const (
	// EncodingNone passes the payload through as-is.
	EncodingNone = dataguard.EncodingNone

	// EncodingBase64 decodes the payload as standard base64 text.
	EncodingBase64 = dataguard.EncodingBase64

	// EncodingMsgPack decodes the payload as msgpack and validates its
	// canonical JSON form.
	EncodingMsgPack = dataguard.EncodingMsgPack
)

// KeyContext selects the BIP-44 coin type of a derivation.
type KeyContext int

const (
	// KeyContextAddress derives keys under the host chain's coin type.
	KeyContextAddress KeyContext = iota

	// KeyContextIdentity derives keys under coin type 0.
	KeyContextIdentity
)

func (c KeyContext) coinType() uint32 {
	if c == KeyContextAddress {
		return 283
	}
	return 0
}

// String returns the name of the key context.
func (c KeyContext) String() string {
	switch c {
	case KeyContextAddress:
		return "Address"
	case KeyContextIdentity:
		return "Identity"
	default:
		return fmt.Sprintf("[unknown context: %d]", int(c))
	}
}

// SignMetadata describes how a SignData payload is to be decoded and
// validated before it is signed.
type SignMetadata struct {
	Encoding Encoding
	Schema   json.RawMessage
}

// Wallet holds a BIP-39 seed and derives, signs and agrees on keys under
// it.  The zero value is not usable; construct with New.
type Wallet struct {
	seed [SeedSize]byte
}

// New constructs a wallet from a 64-byte BIP-39 seed.  The wallet keeps
// its own copy of the seed.
func New(seed []byte) (*Wallet, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("xhdwallet: invalid seed size: %d", len(seed))
	}
	var w Wallet
	copy(w.seed[:], seed)
	return &w, nil
}

// Zeroize clears the held seed.  The wallet must not be used afterwards.
func (w *Wallet) Zeroize() {
	for i := range w.seed {
		w.seed[i] = 0
	}
}

// KeyGen derives the public key at
// m/44'/coin'/account'/change/index for the provided context.
func (w *Wallet) KeyGen(ctx KeyContext, account, change, index uint32, profile Profile) ([]byte, error) {
	key, err := w.deriveForPath(ctx, account, change, index, profile)
	if err != nil {
		return nil, err
	}
	defer key.Zeroize()
	return key.PublicKeyBytes()
}

// SignData validates data with the domain guard and, if it passes, signs
// the raw bytes with the key at the requested path.  Rejected payloads
// fail with ErrDataValidation and nothing is signed.
func (w *Wallet) SignData(ctx KeyContext, account, change, index uint32, data []byte, metadata SignMetadata, profile Profile) ([]byte, error) {
	if !dataguard.Validate(data, metadata.Encoding, metadata.Schema) {
		return nil, ErrDataValidation
	}
	return w.rawSign(ctx, account, change, index, data, profile)
}

// SignAlgoTransaction signs an externally prepared transaction byte string
// that already carries the host chain's tag prefix.  The domain guard is
// deliberately not consulted; this is the only entry point for tagged
// payloads.
func (w *Wallet) SignAlgoTransaction(ctx KeyContext, account, change, index uint32, prefixedTx []byte, profile Profile) ([]byte, error) {
	return w.rawSign(ctx, account, change, index, prefixedTx, profile)
}

func (w *Wallet) rawSign(ctx KeyContext, account, change, index uint32, message []byte, profile Profile) ([]byte, error) {
	key, err := w.deriveForPath(ctx, account, change, index, profile)
	if err != nil {
		return nil, err
	}
	defer key.Zeroize()
	return eddsa.Sign(key, message)
}

// ECDH derives the key at the requested path and computes a shared secret
// with the peer's Ed25519 public key.  Both parties must agree on the
// ordering flag: the party passing meFirst=true hashes its own Montgomery
// key before the peer's.
func (w *Wallet) ECDH(ctx KeyContext, account, change, index uint32, peerPublicKey []byte, meFirst bool, profile Profile) ([]byte, error) {
	key, err := w.deriveForPath(ctx, account, change, index, profile)
	if err != nil {
		return nil, err
	}
	defer key.Zeroize()
	return ecdh.SharedSecret(key, peerPublicKey, meFirst)
}

func (w *Wallet) deriveForPath(ctx KeyContext, account, change, index uint32, profile Profile) (*bip32.ExtendedKey, error) {
	root, err := bip32.NewRoot(w.seed[:])
	if err != nil {
		return nil, err
	}
	defer root.Zeroize()
	return root.DerivePath(bip44Path(ctx, account, change, index), profile)
}

// bip44Path assembles the five-level BIP-44 path.  Purpose, coin type and
// account are hardened internally; change and index never are.
func bip44Path(ctx KeyContext, account, change, index uint32) []uint32 {
	return []uint32{
		bip44Purpose | bip32.HardenedIndexOffset,
		ctx.coinType() | bip32.HardenedIndexOffset,
		account | bip32.HardenedIndexOffset,
		change,
		index,
	}
}

// Verify reports whether sig is a valid detached Ed25519 signature of
// message under publicKey.
func Verify(sig, message, publicKey []byte) bool {
	return eddsa.Verify(publicKey, message, sig)
}

// ValidateData reports whether the domain guard would allow data to be
// signed under the provided metadata.
func ValidateData(data []byte, metadata SignMetadata) bool {
	return dataguard.Validate(data, metadata.Encoding, metadata.Schema)
}

// RootKey derives the 96-byte extended root key from a 64-byte BIP-39
// seed.  The result is suitable as the starting point for DeriveKey.
func RootKey(seed []byte) ([]byte, error) {
	root, err := bip32.NewRoot(seed)
	if err != nil {
		return nil, err
	}
	defer root.Zeroize()
	return root.Bytes(), nil
}

// DeriveKey walks path from the provided 96-byte extended root key.  With
// isPrivate it returns the resulting 96-byte extended private key;
// otherwise it returns just the 32-byte public key of the final node.
func DeriveKey(rootKey []byte, path []uint32, isPrivate bool, profile Profile) ([]byte, error) {
	root, err := bip32.ExtendedKeyFromBytes(rootKey)
	if err != nil {
		return nil, err
	}
	defer root.Zeroize()

	node, err := root.DerivePath(path, profile)
	if err != nil {
		return nil, err
	}
	if isPrivate {
		return node.Bytes(), nil
	}
	defer node.Zeroize()
	return node.PublicKeyBytes()
}

// DeriveChildNodePublic derives a child extended public key from a 64-byte
// extended public key and a non-hardened index.  Hardened indexes fail
// with ErrInvalidIndex.
func DeriveChildNodePublic(extendedPublicKey []byte, index uint32, profile Profile) ([]byte, error) {
	pub, err := bip32.ExtendedPublicKeyFromBytes(extendedPublicKey)
	if err != nil {
		return nil, err
	}
	child, err := pub.DeriveChild(index, profile)
	if err != nil {
		return nil, err
	}
	return child.Bytes(), nil
}

// EncodeAddress returns the host chain's text address for a 32-byte public
// key.
func EncodeAddress(publicKey []byte) (string, error) {
	return address.FromPublicKey(publicKey)
}
