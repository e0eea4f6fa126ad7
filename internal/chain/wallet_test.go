package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "grant rice replace explain federal release fix clever romance raise often wild taxi quarter soccer fiber moral blush olive unusual flame sock melody"

func TestLoadMnemonic(t *testing.T) {
	t.Run("reads and trims the key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "WALLET_KEY.txt")
		require.NoError(t, os.WriteFile(path, []byte("  "+testMnemonic+"\n"), 0o600))

		got, err := LoadMnemonic(path)
		require.NoError(t, err)
		assert.Equal(t, testMnemonic, got)
	})

	t.Run("fails on missing file", func(t *testing.T) {
		_, err := LoadMnemonic(filepath.Join(t.TempDir(), "absent.txt"))
		require.Error(t, err)
	})

	t.Run("fails on empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "WALLET_KEY.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

		_, err := LoadMnemonic(path)
		require.Error(t, err)
	})
}

func TestWalletDerivation(t *testing.T) {
	t.Run("same mnemonic yields same address", func(t *testing.T) {
		a, err := NewWallet(testMnemonic)
		require.NoError(t, err)
		b, err := NewWallet(testMnemonic)
		require.NoError(t, err)
		assert.Equal(t, a.Address(), b.Address())
	})

	t.Run("different mnemonics yield different addresses", func(t *testing.T) {
		a, err := NewWallet(testMnemonic)
		require.NoError(t, err)
		b, err := NewWallet(testMnemonic + " extra")
		require.NoError(t, err)
		assert.NotEqual(t, a.Address(), b.Address())
	})

	t.Run("address carries the account prefix", func(t *testing.T) {
		w, err := NewWallet(testMnemonic)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(w.Address(), "secret1"), "got %s", w.Address())
		assert.Equal(t, strings.ToLower(w.Address()), w.Address())
	})
}

func TestWalletSign(t *testing.T) {
	w, err := NewWallet(testMnemonic)
	require.NoError(t, err)

	msg := []byte(`{"chain_id": "secret-4"}`)
	sig := w.Sign(msg)

	assert.True(t, Verify(w.PublicKey(), msg, sig))
	assert.False(t, Verify(w.PublicKey(), []byte("tampered"), sig))
}

func TestBech32KnownVector(t *testing.T) {
	// BIP-173 test vector: empty data part under hrp "a".
	assert.Equal(t, "a12uel5l", bech32Encode("a", nil))
}
