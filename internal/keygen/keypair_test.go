package keygen

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
)

func TestGeneratorProducesValidKeypairs(t *testing.T) {
	g := NewGenerator()

	kp, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if len(kp.Public) != ed25519.PublicKeySize {
		t.Errorf("public key length = %d, want %d", len(kp.Public), ed25519.PublicKeySize)
	}
	if len(kp.Private) != ed25519.PrivateKeySize {
		t.Errorf("private key length = %d, want %d", len(kp.Private), ed25519.PrivateKeySize)
	}

	// the address must decode back to the raw public key
	raw, err := base58.Decode(kp.Address())
	if err != nil {
		t.Fatalf("address is not valid Base58: %v", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		t.Errorf("decoded address length = %d, want %d", len(raw), ed25519.PublicKeySize)
	}
}

func TestGeneratorProducesDistinctKeypairs(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]struct{}, 2048)
	// crosses a refill boundary to cover the buffered entropy path
	for i := 0; i < seedsPerRefill+100; i++ {
		kp, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate() error at %d: %v", i, err)
		}
		addr := kp.Address()
		if _, dup := seen[addr]; dup {
			t.Fatalf("duplicate address generated: %s", addr)
		}
		seen[addr] = struct{}{}
	}
}

func TestKeypairRoundTrip(t *testing.T) {
	g := NewGenerator()

	kp, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	restored, err := ParseKeypair(kp.PrivateKeyString())
	if err != nil {
		t.Fatalf("ParseKeypair() error: %v", err)
	}

	if restored.Address() != kp.Address() {
		t.Errorf("round-trip address = %s, want %s", restored.Address(), kp.Address())
	}
}

func TestParseKeypairRejectsBadMaterial(t *testing.T) {
	if _, err := ParseKeypair("not-base58-###"); err == nil {
		t.Error("expected error for non-Base58 input")
	}

	// wrong length: a 32-byte value is a public key, not a private key
	short := base58.Encode(make([]byte, 32))
	if _, err := ParseKeypair(short); err == nil {
		t.Error("expected error for short key material")
	}

	// corrupt the embedded public half so it no longer matches the seed
	g := NewGenerator()
	kp, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	corrupt := make([]byte, len(kp.Private))
	copy(corrupt, kp.Private)
	corrupt[ed25519.SeedSize] ^= 0xff
	if _, err := ParseKeypair(base58.Encode(corrupt)); err == nil {
		t.Error("expected error for inconsistent key material")
	}
}
