package keygen

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
)

// Keypair holds one generated ed25519 keypair
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Address returns the Base58 encoding of the 32-byte public key
func (k *Keypair) Address() string {
	return base58.Encode(k.Public)
}

// PrivateKeyString returns the Base58 encoding of the full 64-byte private
// key (seed followed by public key), the conventional wallet import format
func (k *Keypair) PrivateKeyString() string {
	return base58.Encode(k.Private)
}

// ParseKeypair reconstructs a keypair from its Base58-encoded private key.
// The embedded public half is re-derived from the seed and verified, so
// corrupted key material is rejected rather than silently accepted.
func ParseKeypair(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	private := ed25519.PrivateKey(raw)
	rebuilt := ed25519.NewKeyFromSeed(private.Seed())
	if !bytes.Equal(rebuilt, private) {
		return nil, fmt.Errorf("private key material is inconsistent with its seed")
	}

	return &Keypair{
		Public:  ed25519.PublicKey(private[ed25519.SeedSize:]),
		Private: private,
	}, nil
}

// seedsPerRefill sizes the entropy buffer; one refill serves this many keypairs
const seedsPerRefill = 1024

// Generator produces random keypairs from buffered system entropy. Buffering
// amortizes crypto/rand reads across the search hot loop. A Generator is not
// safe for concurrent use; each search worker owns its own.
type Generator struct {
	buf []byte
	off int
}

// NewGenerator creates a keypair generator
func NewGenerator() *Generator {
	buf := make([]byte, ed25519.SeedSize*seedsPerRefill)
	return &Generator{
		buf: buf,
		off: len(buf), // force a refill on first use
	}
}

// Generate produces one random keypair
func (g *Generator) Generate() (*Keypair, error) {
	if g.off+ed25519.SeedSize > len(g.buf) {
		if _, err := io.ReadFull(rand.Reader, g.buf); err != nil {
			return nil, fmt.Errorf("failed to read entropy: %w", err)
		}
		g.off = 0
	}

	seed := g.buf[g.off : g.off+ed25519.SeedSize]
	g.off += ed25519.SeedSize

	private := ed25519.NewKeyFromSeed(seed)
	return &Keypair{
		Public:  ed25519.PublicKey(private[ed25519.SeedSize:]),
		Private: private,
	}, nil
}
