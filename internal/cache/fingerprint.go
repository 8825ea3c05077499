package cache

import (
	"strconv"
	"strings"

	"github.com/coldharbor/infergate/pkg/types"
)

// Fingerprint derives the cache key for a message history: join
// "role:content" pairs with "|" and hash with the reference's 32-bit
// polynomial hash, rendered in radix-36.
func Fingerprint(messages []types.Message) string {
	return hashString(joinQuery(messages))
}

func joinQuery(messages []types.Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = string(m.Role) + ":" + m.Content
	}
	return strings.Join(parts, "|")
}

// hashString implements hash = ((hash<<5) - hash) + charCode(c); hash &= hash
// over int32 arithmetic (matching the JS reference's 32-bit coercion), then
// renders the absolute value in base 36.
func hashString(s string) string {
	var hash int32
	for _, c := range s {
		hash = (hash << 5) - hash + int32(c)
	}
	if hash < 0 {
		hash = -hash
	}
	return strconv.FormatInt(int64(hash), 36)
}
