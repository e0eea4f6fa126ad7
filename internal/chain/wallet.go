// Package chain signs and broadcasts the contract execution that records a
// verified identity hash on the registration contract.
package chain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/ripemd160"
)

// addressPrefix is the bech32 human-readable part for account addresses.
const addressPrefix = "secret"

// LoadMnemonic reads the signing mnemonic from a local key file. There is no
// registration without a funded key, so callers abort startup on error.
func LoadMnemonic(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read wallet key file %s: %w", path, err)
	}
	mnemonic := strings.TrimSpace(string(raw))
	if mnemonic == "" {
		return "", fmt.Errorf("wallet key file %s is empty", path)
	}
	return mnemonic, nil
}

// Wallet holds the process-wide signing key. Read-only after construction,
// safe to share across concurrent registrations.
type Wallet struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewWallet derives the signing key from a mnemonic. The derivation is a
// BIP-39 seed stretch (PBKDF2-SHA512, 2048 rounds) followed by an HKDF
// expansion into the ed25519 seed, so the same mnemonic always yields the
// same key and address.
func NewWallet(mnemonic string) (*Wallet, error) {
	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"), 2048, 64, sha512.New)

	keySeed := make([]byte, ed25519.SeedSize)
	expand := hkdf.New(sha256.New, seed, nil, []byte("erthid registration signing key"))
	if _, err := io.ReadFull(expand, keySeed); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(keySeed)
	pub := priv.Public().(ed25519.PublicKey)

	address, err := accountAddress(pub)
	if err != nil {
		return nil, fmt.Errorf("derive account address: %w", err)
	}

	return &Wallet{priv: priv, pub: pub, address: address}, nil
}

// Address returns the wallet's bech32 account address.
func (w *Wallet) Address() string { return w.address }

// PublicKey returns the raw signing public key bytes.
func (w *Wallet) PublicKey() []byte { return []byte(w.pub) }

// Sign signs the SHA-256 digest of the given bytes.
func (w *Wallet) Sign(msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return ed25519.Sign(w.priv, digest[:])
}

// Verify checks a signature produced by Sign against a public key.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	digest := sha256.Sum256(msg)
	return ed25519.Verify(pub, digest[:], sig)
}

// accountAddress renders bech32(prefix, ripemd160(sha256(pubkey))), the
// standard account address construction on Cosmos-style chains.
func accountAddress(pub ed25519.PublicKey) (string, error) {
	sum := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sum[:])
	grouped, err := convertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32Encode(addressPrefix, grouped), nil
}
