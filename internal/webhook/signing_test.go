package webhook

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSignAndVerifyRoundTrip covers S5: a generated signature verifies
// against the same body and secret.
func TestSignAndVerifyRoundTrip(t *testing.T) {
	body := []byte("{}")
	header := sign("s", time.Now().UnixMilli(), body)

	assert.True(t, VerifySignature(body, header, "s", 300))
}

// TestVerifySignatureRejectsMutatedBody covers S5's second half.
func TestVerifySignatureRejectsMutatedBody(t *testing.T) {
	body := []byte("{}")
	header := sign("s", time.Now().UnixMilli(), body)

	assert.False(t, VerifySignature([]byte("{} "), header, "s", 300))
}

// TestVerifySignatureRejectsMutatedSecret covers invariant 10: mutating the
// secret used to verify must fail.
func TestVerifySignatureRejectsMutatedSecret(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	header := sign("correct-secret", time.Now().UnixMilli(), body)

	assert.False(t, VerifySignature(body, header, "wrong-secret", 300))
}

// TestVerifySignatureRejectsMutatedTimestamp covers invariant 10: mutating
// ts in the header invalidates the signature even though the digest string
// is untouched.
func TestVerifySignatureRejectsMutatedTimestamp(t *testing.T) {
	body := []byte("{}")
	ts := time.Now().UnixMilli()
	_, digest, ok := parseSignatureHeader(sign("s", ts, body))
	require.True(t, ok)

	tamperedHeader := "t=" + strconv.FormatInt(ts+1, 10) + ",v1=" + digest

	assert.False(t, VerifySignature(body, tamperedHeader, "s", 300))
}

// TestVerifySignatureRejectsStaleTimestamp covers invariant 10's tolerance
// clause.
func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte("{}")
	staleTs := time.Now().Add(-10 * time.Minute).UnixMilli()
	header := sign("s", staleTs, body)

	assert.False(t, VerifySignature(body, header, "s", 300))
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	assert.False(t, VerifySignature([]byte("{}"), "not-a-valid-header", "s", 300))
	assert.False(t, VerifySignature([]byte("{}"), "", "s", 300))
}

func TestGenerateSecretProducesDistinctHexValues(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
