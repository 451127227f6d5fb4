package feed

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/echo-social/echonet/pkg/errors"
)

// Cursor marks the position of the last item of the previous page in a
// (created_at DESC, id DESC) ordered scan. It is opaque to clients; the
// wire form is URL-safe base64 over JSON. The codec never checks whether
// the referenced post still exists: pagination compares against the sort
// key, so a concurrently deleted anchor row is harmless.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode returns the opaque wire form of the cursor.
func (c Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor string. Malformed input yields
// ErrInvalidCursor.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "cursor is not valid base64")
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "cursor payload is malformed")
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return c, apperrors.New(apperrors.ErrInvalidCursor, http.StatusBadRequest, "cursor is missing its sort key")
	}
	return c, nil
}
