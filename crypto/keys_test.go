package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAndParseAddress(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	formatted := FormatAddress(raw)
	require.True(t, strings.HasPrefix(formatted, "stake1"))

	parsed, err := ParseAddress(formatted)
	require.NoError(t, err)
	require.Equal(t, raw, parsed)

	parsed, err = ParseAddress(" 0x0102030405060708090a0b0c0d0e0f1011121314 ")
	require.NoError(t, err)
	require.Equal(t, raw, parsed)

	parsed, err = ParseAddress(strings.ToUpper(formatted))
	require.NoError(t, err)
	require.Equal(t, raw, parsed)
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "0x1234", "0xzz", "stake1notvalid", MustNewAddress("other", make([]byte, 20)).String()} {
		_, err := ParseAddress(input)
		require.Error(t, err, input)
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	payload := []byte("1700000000\nPOST\n/v1/ledger/notify\n{}")
	sig, err := key.Sign(payload)
	require.NoError(t, err)

	signer, err := RecoverSigner(payload, sig)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().Bytes20(), signer)

	other, err := RecoverSigner([]byte("tampered"), sig)
	require.NoError(t, err)
	require.NotEqual(t, signer, other)

	_, err = RecoverSigner(payload, sig[:10])
	require.Error(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().String(), restored.PubKey().Address().String())
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "staker.keystore")
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, SaveToKeystore(path, key, "correct horse"))

	loaded, err := LoadFromKeystore(path, "correct horse")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
	require.Error(t, SaveToKeystore(path, nil, "x"))
}
