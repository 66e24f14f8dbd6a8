package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ProbeKey addresses the cached media probe for a source URL. The URL is hashed
// so arbitrary query strings stay out of the key space.
func ProbeKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(sourceURL)))
	return fmt.Sprintf("probe:%s", hex.EncodeToString(sum[:]))
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
