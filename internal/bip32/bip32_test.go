package bip32

import (
	"bytes"
	"errors"
	"os"
	"testing"

	bip39 "github.com/tyler-smith/go-bip39"
)

const testMnemonic = "salon zoo engage submit smile frost later decide wing sight chaos renew lizard rely canal coral scene hobby scare step bus leaf tobacco slice"

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed := bip39.NewSeed(testMnemonic, "")
	if len(seed) != SeedSize {
		t.Fatalf("unexpected seed size: %d", len(seed))
	}
	return seed
}

func assertPrefix(t *testing.T, name string, expected, actual []byte) {
	t.Helper()
	if !bytes.HasPrefix(actual, expected) {
		t.Fatalf("%s mismatch: expected prefix %d, got %d", name, expected, actual[:len(expected)])
	}
}

func TestKnownAnswerRoot(t *testing.T) {
	seed := testSeed(t)
	assertPrefix(t, "seed", []byte{58, 255, 45, 180, 22, 184, 149, 236}, seed)

	root, err := NewRoot(seed)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	assertPrefix(t, "kL", []byte{168, 186, 128, 2}, root.KL[:])
	assertPrefix(t, "kR", []byte{148, 89, 43, 75}, root.KR[:])
	assertPrefix(t, "c", []byte{121, 107, 146, 6}, root.C[:])

	// Root invariants: clamp bits and the held-zero safety bit.
	if root.KL[0]&0b0000_0111 != 0 {
		t.Fatalf("kL[0] low bits not cleared: %x", root.KL[0])
	}
	if root.KL[31]&0x80 != 0 || root.KL[31]&0x40 == 0 || root.KL[31]&0x20 != 0 {
		t.Fatalf("kL[31] clamp/safety bits wrong: %x", root.KL[31])
	}
}

func TestNewRootRejectsShortSeed(t *testing.T) {
	if _, err := NewRoot(make([]byte, 32)); err == nil {
		t.Fatalf("failed to reject undersized seed")
	}
}

func TestRoundTripSerialization(t *testing.T) {
	root, err := NewRoot(testSeed(t))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	b := root.Bytes()
	if len(b) != ExtendedKeySize {
		t.Fatalf("unexpected extended key size: %d", len(b))
	}
	back, err := ExtendedKeyFromBytes(b)
	if err != nil {
		t.Fatalf("ExtendedKeyFromBytes: %v", err)
	}
	if *back != *root {
		t.Fatalf("extended key round trip mismatch")
	}

	pub, err := root.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	pb := pub.Bytes()
	if len(pb) != ExtendedPublicKeySize {
		t.Fatalf("unexpected extended public key size: %d", len(pb))
	}
	pubBack, err := ExtendedPublicKeyFromBytes(pb)
	if err != nil {
		t.Fatalf("ExtendedPublicKeyFromBytes: %v", err)
	}
	if *pubBack != *pub {
		t.Fatalf("extended public key round trip mismatch")
	}
}

func TestDeriveChildPublicProfiles(t *testing.T) {
	root, err := NewRoot(testSeed(t))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	pub, err := root.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}

	for _, tc := range []struct {
		profile   Profile
		firstByte byte
	}{
		{ProfileKhovratovich, 232},
		{ProfilePeikert, 40},
	} {
		t.Run(tc.profile.String(), func(t *testing.T) {
			child, err := pub.DeriveChild(0, tc.profile)
			if err != nil {
				t.Fatalf("DeriveChild(0): %v", err)
			}
			if child.A[0] != tc.firstByte {
				t.Fatalf("A'[0] mismatch: expected %d, got %d", tc.firstByte, child.A[0])
			}
		})
	}
}

func TestDeriveChildPublicRejectsHardened(t *testing.T) {
	root, err := NewRoot(testSeed(t))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	pub, err := root.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if _, err = pub.DeriveChild(HardenedIndexOffset, ProfileKhovratovich); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err = pub.DeriveChild(HardenedIndexOffset+7, ProfilePeikert); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestSoftDerivationEquivalence(t *testing.T) {
	root, err := NewRoot(testSeed(t))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	pathPrefix := []uint32{
		HardenedIndexOffset + 44,
		HardenedIndexOffset + 283,
		HardenedIndexOffset + 0,
		0,
	}

	for _, profile := range []Profile{ProfileKhovratovich, ProfilePeikert} {
		t.Run(profile.String(), func(t *testing.T) {
			parent, err := root.DerivePath(pathPrefix, profile)
			if err != nil {
				t.Fatalf("DerivePath: %v", err)
			}
			parentPub, err := parent.Public()
			if err != nil {
				t.Fatalf("Public: %v", err)
			}

			for index := uint32(0); index < 6; index++ {
				soft, err := parentPub.DeriveChild(index, profile)
				if err != nil {
					t.Fatalf("public DeriveChild(%d): %v", index, err)
				}
				private, err := parent.DeriveChild(index, profile)
				if err != nil {
					t.Fatalf("private DeriveChild(%d): %v", index, err)
				}
				pk, err := private.PublicKeyBytes()
				if err != nil {
					t.Fatalf("PublicKeyBytes: %v", err)
				}
				if !bytes.Equal(soft.A[:], pk) {
					t.Fatalf("index %d: soft derivation diverged from private derivation", index)
				}
				if soft.C != private.C {
					t.Fatalf("index %d: chain code diverged", index)
				}
			}
		})
	}
}

func TestHardenedAndSoftDiffer(t *testing.T) {
	root, err := NewRoot(testSeed(t))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	hard, err := root.DeriveChild(HardenedIndexOffset, ProfileKhovratovich)
	if err != nil {
		t.Fatalf("DeriveChild(0'): %v", err)
	}
	soft, err := root.DeriveChild(0, ProfileKhovratovich)
	if err != nil {
		t.Fatalf("DeriveChild(0): %v", err)
	}
	if hard.KL == soft.KL {
		t.Fatalf("hardened and soft children share kL")
	}
}

// worstCaseKL is a kL at the top of the range a root key can occupy: every
// bit set except those forced by the clamp and the held-zero safety bit.
func worstCaseKL() [32]byte {
	var kL [32]byte
	for i := range kL {
		kL[i] = 0xff
	}
	clampScalar(kL[:])
	kL[31] &= 0xdf
	return kL
}

func runDepthExhaustion(t *testing.T, profile Profile, expectedDepth int) {
	kL := worstCaseKL()
	var kR [32]byte

	// zL = 0xff.. is the adversarial HMAC output; truncation is applied
	// by applyZ itself.
	var z [64]byte
	for i := range z {
		z[i] = 0xff
	}

	depth := 0
	for {
		childKL, childKR, err := applyZ(&kL, &kR, z[:], profile.zeroBits())
		if err != nil {
			if !errors.Is(err, ErrDerivationOverflow) {
				t.Fatalf("unexpected error at depth %d: %v", depth+1, err)
			}
			break
		}
		depth++
		if depth > expectedDepth {
			break
		}
		kL, kR = childKL, childKR
	}

	if depth != expectedDepth {
		t.Fatalf("safe depth mismatch: expected %d, got %d", expectedDepth, depth)
	}
}

func TestDepthExhaustionPeikert(t *testing.T) {
	runDepthExhaustion(t, ProfilePeikert, 8)
}

func TestDepthExhaustionKhovratovich(t *testing.T) {
	if os.Getenv("XHDWALLET_DEPTH_EXHAUSTION") == "" {
		t.Skip("skipping 2^26-step exhaustion, set XHDWALLET_DEPTH_EXHAUSTION to run")
	}
	runDepthExhaustion(t, ProfileKhovratovich, 1<<26)
}
