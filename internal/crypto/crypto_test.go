package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersAtDeterministic(t *testing.T) {
	auth := &HMACAuth{
		Key:    "key-1",
		Secret: base64.StdEncoding.EncodeToString([]byte("topsecret")),
	}

	a := auth.HeadersAt("POST", "/v1/transfer", `{"amount":100}`, 1700000000)
	b := auth.HeadersAt("POST", "/v1/transfer", `{"amount":100}`, 1700000000)
	assert.Equal(t, a, b)
	assert.Equal(t, "key-1", a["X-Treasury-Api-Key"])
	assert.Equal(t, "1700000000", a["X-Treasury-Timestamp"])
	assert.NotEmpty(t, a["X-Treasury-Signature"])

	// Different body, different signature.
	c := auth.HeadersAt("POST", "/v1/transfer", `{"amount":101}`, 1700000000)
	assert.NotEqual(t, a["X-Treasury-Signature"], c["X-Treasury-Signature"])
}

func TestSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("hunter2hunter2", "correct horse")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "hunter2hunter2", got)

	_, err = DecryptSecret(blob, "wrong password")
	assert.Error(t, err)
}

func TestLoadSecretPrefersRaw(t *testing.T) {
	got, err := LoadSecret(SecretConfig{RawSecret: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = LoadSecret(SecretConfig{})
	assert.Error(t, err)
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "key-123456", Secret: "secret-123456"}
	s := auth.String()
	assert.NotContains(t, s, "123456")
}
