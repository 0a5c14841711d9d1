// Package cache holds the session-keyed policy cache shared by independent
// hook processes, and the stores it can persist to.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

// ErrNotFound is returned by a Store when the key has no value.
var ErrNotFound = errors.New("cache: not found")

// Store is a whole-value key/value store. Writes replace the previous value.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// safeKey matches session ids that can be used verbatim as file names.
var safeKey = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// hashedPrefix marks keys derived by hashing. Ids carrying it are hashed too,
// so a verbatim id can never equal the hashed key of another id.
const hashedPrefix = "sid-"

// StorageKey derives a deterministic, filesystem-safe key from a session id.
// Ids starting with "." are hashed so their files stay visible to the watcher.
func StorageKey(sessionID string) string {
	if safeKey.MatchString(sessionID) &&
		!strings.Contains(sessionID, "..") &&
		!strings.HasPrefix(sessionID, ".") &&
		!strings.HasPrefix(sessionID, hashedPrefix) {
		return sessionID
	}
	h := sha256.Sum256([]byte(sessionID))
	return hashedPrefix + hex.EncodeToString(h[:16])
}
