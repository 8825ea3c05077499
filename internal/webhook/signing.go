package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const signatureScheme = "v1"

// generateSecret produces a 32-byte random secret rendered as hex, used
// when Register is called without an explicit secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("webhook: generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// sign computes the "t=<ts>,v1=<hmac>" signature header for a delivery
// body at the given millisecond timestamp.
func sign(secret string, tsMillis int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(tsMillis, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	digest := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,%s=%s", tsMillis, signatureScheme, digest)
}

// VerifySignature parses a "t=<ts>,v1=<sig>" header, rejects stale
// timestamps outside toleranceSec, recomputes the HMAC over body, and
// compares in constant time.
func VerifySignature(body []byte, header, secret string, toleranceSec int64) bool {
	ts, digest, ok := parseSignatureHeader(header)
	if !ok {
		return false
	}

	nowMillis := time.Now().UnixMilli()
	delta := nowMillis - ts
	if delta < 0 {
		delta = -delta
	}
	if delta > toleranceSec*1000 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, got) == 1
}

// parseSignatureHeader splits "t=<ts>,v1=<sig>" into its components.
func parseSignatureHeader(header string) (ts int64, digest string, ok bool) {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return 0, "", false
	}

	var tsStr string
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return 0, "", false
		}
		switch kv[0] {
		case "t":
			tsStr = kv[1]
		case signatureScheme:
			digest = kv[1]
		}
	}
	if tsStr == "" || digest == "" {
		return 0, "", false
	}

	parsed, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return parsed, digest, true
}
