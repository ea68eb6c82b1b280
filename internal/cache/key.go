package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key hashes a URL and its request parameters. encoding/json sorts map keys,
// so equal parameter sets give equal keys regardless of insertion order.
func Key(url string, params map[string]any) string {
	p, err := json.Marshal(params)
	if err != nil || params == nil {
		p = []byte("{}")
	}
	h := sha256.Sum256([]byte(url + ":" + string(p)))
	return hex.EncodeToString(h[:16])
}

func typedKey(url, cacheType string) string {
	return Key(url, map[string]any{"cache_type": cacheType})
}
