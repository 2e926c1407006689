package media

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// unsigned names the request parameters the host leaves out of signatures.
var unsigned = map[string]bool{
	"file":          true,
	"api_key":       true,
	"resource_type": true,
	"cloud_name":    true,
	"signature":     true,
}

// Sign computes the request signature: non-empty parameters sorted by name,
// joined as name=value pairs with '&', the secret appended, SHA-1 hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || unsigned[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
