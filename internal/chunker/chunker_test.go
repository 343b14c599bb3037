// Copyright (c) 2025-2026 the dbagent authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"defaults are valid", nil, false},
		{"zero size", []Option{WithChunkSize(0)}, true},
		{"negative size", []Option{WithChunkSize(-10)}, true},
		{"negative overlap", []Option{WithOverlap(-1)}, true},
		{"overlap equals size", []Option{WithChunkSize(100), WithOverlap(100)}, true},
		{"overlap exceeds size", []Option{WithChunkSize(100), WithOverlap(150)}, true},
		{"unknown strategy", []Option{WithStrategy("zigzag")}, true},
		{"explicit valid", []Option{WithChunkSize(256), WithOverlap(32), WithStrategy(Sentence)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Recursive, got, "empty string defaults to recursive")

	for _, s := range []string{"fixed", "sentence", "paragraph", "recursive"} {
		got, err := ParseStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, Strategy(s), got)
	}

	_, err = ParseStrategy("Fixed") // case-sensitive
	assert.Error(t, err)
}

func TestSplit_empty(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	chunks, err := c.Split("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_shortInput(t *testing.T) {
	// Input shorter than the chunk size comes back as a single identical
	// chunk, regardless of strategy.
	const text = "A short note."
	for _, s := range []Strategy{Fixed, Sentence, Paragraph, Recursive} {
		t.Run(string(s), func(t *testing.T) {
			c, err := New(WithStrategy(s))
			require.NoError(t, err)
			chunks, err := c.Split(text)
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, text, chunks[0].Text)
			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, len([]rune(text)), chunks[0].End)
		})
	}
}

func TestSplit_fixed(t *testing.T) {
	c, err := New(WithStrategy(Fixed), WithChunkSize(10), WithOverlap(3))
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 3) // 30 runes
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	rs := []rune(text)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, ch.End-ch.Start, 10, "chunk %d exceeds size", i)
		assert.Equal(t, string(rs[ch.Start:ch.End]), ch.Text, "offsets must match text")
		if i > 0 {
			assert.Equal(t, 7, ch.Start-chunks[i-1].Start, "stride is size-overlap")
		}
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(rs), last.End, "last chunk reaches end of input")
}

func TestSplit_fixed_unicode(t *testing.T) {
	c, err := New(WithStrategy(Fixed), WithChunkSize(4), WithOverlap(0))
	require.NoError(t, err)

	text := "日本語のテキストです" // 10 runes, all multi-byte
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "日本語の", chunks[0].Text)
	assert.Equal(t, "テキスト", chunks[1].Text)
	assert.Equal(t, "です", chunks[2].Text)
	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Text)
	}
	assert.Equal(t, text, joined.String(), "zero overlap reassembles input")
}

func TestSplit_sentence(t *testing.T) {
	c, err := New(WithStrategy(Sentence), WithChunkSize(40), WithOverlap(0))
	require.NoError(t, err)

	text := "First sentence here. Second one follows! A third, longer sentence ends it all?"
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	for i, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 40, "chunk %d exceeds size", i)
	}
	assert.True(t, strings.HasPrefix(chunks[0].Text, "First sentence here."))
}

func TestSplit_sentence_doesNotBreakDecimals(t *testing.T) {
	c, err := New(WithStrategy(Sentence), WithChunkSize(100), WithOverlap(0))
	require.NoError(t, err)

	chunks, err := c.Split("Pi is 3.14159 to five places. That is enough.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "3.14159")
}

func TestSplit_paragraph(t *testing.T) {
	c, err := New(WithStrategy(Paragraph), WithChunkSize(30), WithOverlap(0))
	require.NoError(t, err)

	text := "First paragraph, short.\n\nSecond paragraph, also short.\n\nThird."
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 30)
		assert.NotContains(t, ch.Text, "\n\n", "paragraph chunks within size never span a break")
	}
}

func TestSplit_paragraph_packsSmall(t *testing.T) {
	c, err := New(WithStrategy(Paragraph), WithChunkSize(200), WithOverlap(0))
	require.NoError(t, err)

	text := "One.\n\nTwo.\n\nThree."
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "small paragraphs pack into one chunk")
	assert.Equal(t, text, chunks[0].Text)
}

func TestSplit_recursive(t *testing.T) {
	c, err := New(WithStrategy(Recursive), WithChunkSize(50), WithOverlap(10))
	require.NoError(t, err)

	para := "The quick brown fox jumps over the lazy dog. " // 45 runes
	text := strings.TrimSpace(strings.Repeat(para, 4))
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	rs := []rune(text)
	for i, ch := range chunks {
		assert.Equal(t, string(rs[ch.Start:ch.End]), ch.Text, "chunk %d offsets", i)
		if i > 0 {
			assert.Less(t, ch.Start, chunks[i-1].End, "chunk %d overlaps its predecessor", i)
		}
	}
	assert.Equal(t, len(rs), chunks[len(chunks)-1].End)
}

func TestSplit_recursive_noSeparators(t *testing.T) {
	// A single long token has no separators at any level and must fall back
	// to fixed windows.
	c, err := New(WithStrategy(Recursive), WithChunkSize(8), WithOverlap(2))
	require.NoError(t, err)

	chunks, err := c.Split(strings.Repeat("x", 30))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.End-ch.Start, 8)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("a", 400), 100},
		{"日本語", 1}, // runes, not bytes
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.in), "EstimateTokens(%q)", tt.in)
	}
}

func TestStrategies(t *testing.T) {
	infos := Strategies()
	require.Len(t, infos, 4)
	names := make(map[string]bool)
	for _, si := range infos {
		names[si.Name] = true
		assert.NotEmpty(t, si.Description)
	}
	for _, want := range []string{"fixed", "sentence", "paragraph", "recursive"} {
		assert.True(t, names[want], "missing strategy %s", want)
	}
}

func TestDefaults_Options(t *testing.T) {
	var zero Defaults
	assert.Empty(t, zero.Options(), "zero defaults contribute no options")

	d := Defaults{ChunkSize: 128, Overlap: 16, Strategy: "sentence"}
	c, err := New(d.Options()...)
	require.NoError(t, err)
	assert.Equal(t, 128, c.Size())
	assert.Equal(t, 16, c.Overlap())
	assert.Equal(t, Sentence, c.Strategy())
}
