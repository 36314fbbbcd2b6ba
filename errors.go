package xhdwallet

import (
	"errors"

	"github.com/algorandfoundation/xhd-wallet-go/internal/bip32"
)

var (
	// ErrDerivationOverflow is returned when a derived scalar would leave
	// the safe range.  The same path and profile will always fail; the
	// caller must not retry.
	ErrDerivationOverflow = bip32.ErrDerivationOverflow

	// ErrInvalidIndex is returned when DeriveChildNodePublic is called
	// with a hardened index.
	ErrInvalidIndex = bip32.ErrInvalidIndex

	// ErrSeedRejected is returned when the root derivation discard loop
	// did not terminate within the implementation cap.
	ErrSeedRejected = bip32.ErrSeedRejected

	// ErrCryptoBackend is returned when the underlying curve library
	// rejects a value.
	ErrCryptoBackend = bip32.ErrCryptoBackend

	// ErrDataValidation is returned by SignData when the domain guard
	// rejects the payload.
	ErrDataValidation = errors.New("xhdwallet: data validation failed")
)
