package appcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const keyBase = "cache"

// Key builds logical cache keys of the form
// "cache:[path:/api/health]:[auth:anonymous]". The stored key is the
// sha256 of the logical one, keeping arbitrary request data out of the
// backend while staying deterministic.
type Key struct {
	base  string
	parts []string
}

func NewKey() Key {
	return Key{base: keyBase}
}

// WithBase replaces the base segment of the key.
func (k Key) WithBase(base string) Key {
	k.base = base

	return k
}

// Vary appends a method value pair the key varies on.
func (k Key) Vary(method, value string) Key {
	parts := make([]string, len(k.parts), len(k.parts)+1)
	copy(parts, k.parts)

	k.parts = append(parts, "["+method+":"+value+"]")

	return k
}

func (k Key) VaryPath(path string) Key {
	return k.Vary("path", path)
}

// VaryQuery varies on the sorted query string so that parameter order
// does not fragment the cache.
func (k Key) VaryQuery(values url.Values) Key {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, key := range keys {
		vs := values[key]
		sort.Strings(vs)

		for _, v := range vs {
			pairs = append(pairs, key+"="+v)
		}
	}

	return k.Vary("query", strings.Join(pairs, "&"))
}

// VaryAuth varies on the authenticated subject, or "anonymous" when
// the request carries none.
func (k Key) VaryAuth(subject string) Key {
	if subject == "" {
		subject = "anonymous"
	}

	return k.Vary("auth", subject)
}

// Logical renders the readable key used for logging.
func (k Key) Logical() string {
	if len(k.parts) == 0 {
		return k.base
	}

	return k.base + ":" + strings.Join(k.parts, ":")
}

// Hash renders the stored key.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.Logical()))

	return hex.EncodeToString(sum[:])
}
