package blobstore

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
}

func TestSealerRoundtrip(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)

	plaintext := []byte(`{"event":"payment.settled","order":"SM-1001"}`)
	sealed, err := sealer.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)
	assert.Greater(t, len(sealed), len(plaintext))

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealerNoncesDiffer(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)

	a, err := sealer.Seal([]byte("same payload"))
	require.NoError(t, err)
	b, err := sealer.Seal([]byte("same payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealerRejectsTamperedCiphertext(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = sealer.Open(sealed)
	assert.Error(t, err)
}

func TestSealerRejectsWrongKey(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)
	sealed, err := sealer.Seal([]byte("payload"))
	require.NoError(t, err)

	other, err := NewSealer(bytes.Repeat([]byte{0x24}, chacha20poly1305.KeySize))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestSealerRejectsShortPayload(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)

	_, err = sealer.Open([]byte("short"))
	assert.Error(t, err)
}

func TestNewSealerRejectsBadKeySize(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.Error(t, err)
	_, err = NewSealer(bytes.Repeat([]byte{0x01}, 64))
	assert.Error(t, err)
}

func TestNewSealerFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_PAYLOAD_KEY", hex.EncodeToString(testKey()))
	sealer, err := NewSealerFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, sealer)

	t.Setenv("WEBHOOK_PAYLOAD_KEY", "not-hex")
	_, err = NewSealerFromEnv()
	assert.Error(t, err)

	t.Setenv("WEBHOOK_PAYLOAD_KEY", "")
	_, err = NewSealerFromEnv()
	assert.Error(t, err)
}
