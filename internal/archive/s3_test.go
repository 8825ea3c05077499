package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestDefaultS3ConfigUsesBatchDefaults(t *testing.T) {
	cfg := DefaultS3Config()
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestNewS3ArchiverRequiresBucketName(t *testing.T) {
	_, err := NewS3Archiver(S3Config{})
	assert.Error(t, err)
}

func TestGenerateKeyPartitionsByDate(t *testing.T) {
	a := &S3Archiver{config: S3Config{PathPrefix: "infergate/deliveries"}}
	key := a.generateKey(mustParseTime(t, "2026-07-31T12:00:00Z"))
	assert.Contains(t, key, "infergate/deliveries/year=2026/month=07/day=31/hour=12")
}
