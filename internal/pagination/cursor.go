// Package pagination implements the opaque cursor codec used for keyset
// pagination over event listings. Tokens are transport-safe strings; callers
// must treat them as opaque and never compare them lexically.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Cursor is the resume point for a listing ordered by (SortValue, ID)
// ascending. It is a value object and is never persisted.
type Cursor struct {
	SortValue time.Time `json:"s"`
	ID        uuid.UUID `json:"i"`
}

// Encode serializes the cursor into an opaque, URL-safe token.
// Encoding is deterministic and reversible: Decode(Encode(c)) == c.
func Encode(c Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		// Cursor has no unmarshalable fields; this cannot happen.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a token produced by Encode. It returns nil for any malformed
// input rather than an error: tokens arrive as query parameters, and garbage
// must degrade to "no cursor", not fail the request.
func Decode(token string) *Cursor {
	if token == "" {
		return nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}

	if c.ID == uuid.Nil && c.SortValue.IsZero() {
		return nil
	}

	return &c
}
