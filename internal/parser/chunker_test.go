package parser

import (
	"strings"
	"testing"
)

func TestChunkDocument(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{
			name: "empty input yields no chunks",
			text: "",
			size: 4,
			want: nil,
		},
		{
			name: "shorter than size is a single chunk",
			text: "abc",
			size: 10,
			want: []string{"abc"},
		},
		{
			name: "exact multiple splits cleanly",
			text: "abcdefgh",
			size: 4,
			want: []string{"abcd", "efgh"},
		},
		{
			name: "remainder becomes a short final chunk",
			text: "abcdefghij",
			size: 4,
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "size one splits per character",
			text: "abc",
			size: 1,
			want: []string{"a", "b", "c"},
		},
		{
			name: "multi-byte runes are never split",
			text: "日本語のテキスト",
			size: 3,
			want: []string{"日本語", "のテキ", "スト"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkDocument(tt.text, tt.size)

			if len(got) != len(tt.want) {
				t.Fatalf("ChunkDocument() got %d chunks, want %d: %q", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkDocument_DefaultSize(t *testing.T) {
	text := strings.Repeat("x", DefaultChunkSize+1)

	// Non-positive sizes fall back to the default.
	for _, size := range []int{0, -5} {
		chunks := ChunkDocument(text, size)
		if len(chunks) != 2 {
			t.Fatalf("ChunkDocument(size=%d) got %d chunks, want 2", size, len(chunks))
		}
		if len(chunks[0]) != DefaultChunkSize {
			t.Errorf("chunk[0] length = %d, want %d", len(chunks[0]), DefaultChunkSize)
		}
		if chunks[1] != "x" {
			t.Errorf("chunk[1] = %q, want %q", chunks[1], "x")
		}
	}
}

func TestChunkDocument_Reassembles(t *testing.T) {
	text := "The p53 pathway governs cell cycle arrest, senescence and apoptosis in response to stress."

	for _, size := range []int{1, 7, 16, 1000} {
		chunks := ChunkDocument(text, size)
		if got := strings.Join(chunks, ""); got != text {
			t.Errorf("size %d: joined chunks differ from input\ngot:  %q\nwant: %q", size, got, text)
		}
	}
}
