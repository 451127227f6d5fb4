package benchmark

import (
	"testing"
	"time"

	"github.com/echo-social/echonet/internal/feed"
)

// BenchmarkCursorEncode measures the per-page cost of producing the opaque
// next-page cursor.
func BenchmarkCursorEncode(b *testing.B) {
	c := feed.Cursor{
		ID:        "b2f1c0de-9a87-4c65-8e43-210fedcba987",
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := c.Encode()
		_ = s
	}
}

// BenchmarkCursorDecode measures cursor parsing, the first thing every
// paginated request does.
func BenchmarkCursorDecode(b *testing.B) {
	encoded := feed.Cursor{
		ID:        "b2f1c0de-9a87-4c65-8e43-210fedcba987",
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}.Encode()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := feed.DecodeCursor(encoded)
		if err != nil {
			b.Fatal(err)
		}
		_ = c
	}
}

// BenchmarkCursorDecodeInvalid measures the rejection path for malformed
// cursors.
func BenchmarkCursorDecodeInvalid(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, err := feed.DecodeCursor("!!garbage!!")
		if err == nil {
			b.Fatal("expected decode error")
		}
	}
}
