package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Keys are shaped "<operation>:<user_id>:<digest>" so per-user and
// per-user-per-operation invalidation reduce to glob patterns.

// Key derives a deterministic cache key from the logical query shape. Params
// are normalized (sorted by name) before hashing so equivalent queries share
// a key. Pagination cursors must not be included: cursor space is unbounded,
// so only the first page of a given filter is cached.
func Key(operation string, userID uuid.UUID, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
		b.WriteByte(';')
	}

	digest := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%s:%s", operation, userID, hex.EncodeToString(digest[:8]))
}

// UserPattern matches every cached key for the user, across operations.
func UserPattern(userID uuid.UUID) string {
	return fmt.Sprintf("*:%s:*", userID)
}

// OperationPattern matches every cached key for one operation and user.
func OperationPattern(operation string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:*", operation, userID)
}
