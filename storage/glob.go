package storage

import "strings"

const globMeta = `*?[{\`

// HasMeta reports whether pattern contains glob metacharacters.
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, globMeta)
}

// LiteralPrefix returns the part of pattern before the first metacharacter.
// Object stores list under it and match the remainder client-side.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, globMeta); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// SplitBucket splits an object-store path "bucket/key" into its parts.
func SplitBucket(path string) (bucket, key string) {
	path = strings.TrimLeft(path, "/")
	bucket, key, _ = strings.Cut(path, "/")
	return bucket, key
}
