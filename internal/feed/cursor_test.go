package feed

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	apperrors "github.com/echo-social/echonet/pkg/errors"
)

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
	}{
		{
			name:   "utc timestamp",
			cursor: Cursor{ID: "post-123", CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)},
		},
		{
			name:   "non-utc timestamp",
			cursor: Cursor{ID: "post-456", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("JST", 9*3600))},
		},
		{
			name:   "uuid id",
			cursor: Cursor{ID: "b2f1c0de-9a87-4c65-8e43-210fedcba987", CreatedAt: time.Unix(1700000000, 0).UTC()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCursor(tt.cursor.Encode())
			if err != nil {
				t.Fatalf("DecodeCursor() error = %v", err)
			}
			if got.ID != tt.cursor.ID {
				t.Errorf("ID = %q, want %q", got.ID, tt.cursor.ID)
			}
			if !got.CreatedAt.Equal(tt.cursor.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, tt.cursor.CreatedAt)
			}
		})
	}
}

func TestCursorEncodeIsURLSafe(t *testing.T) {
	c := Cursor{ID: "post-1", CreatedAt: time.Now().UTC()}
	encoded := c.Encode()
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		t.Fatalf("encoded cursor is not raw URL-safe base64: %v", err)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "!!not-base64!!"},
		{name: "base64 but not json", input: base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{name: "json but missing id", input: base64.RawURLEncoding.EncodeToString([]byte(`{"created_at":"2026-01-01T00:00:00Z"}`))},
		{name: "json but missing timestamp", input: base64.RawURLEncoding.EncodeToString([]byte(`{"id":"post-1"}`))},
		{name: "empty object", input: base64.RawURLEncoding.EncodeToString([]byte(`{}`))},
		{name: "empty string", input: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.input)
			if err == nil {
				t.Fatal("DecodeCursor() expected error, got nil")
			}
			if !errors.Is(err, apperrors.ErrInvalidCursor) {
				t.Errorf("error = %v, want ErrInvalidCursor", err)
			}
		})
	}
}
