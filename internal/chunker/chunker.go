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

// Package chunker implements text segmentation for retrieval pipelines.  It
// splits documents into chunks using one of several strategies (fixed
// windows, sentence packing, paragraph packing, or recursive separator
// splitting), with optional overlap between adjacent chunks.
//
// All sizes and offsets are in runes, not bytes, so multi-byte text is never
// split mid-character.
package chunker

import (
	"fmt"
)

// Strategy selects the splitting algorithm.
type Strategy string

const (
	// Fixed splits the text into windows of ChunkSize runes, the window
	// start advancing by ChunkSize-Overlap runes each step.
	Fixed Strategy = "fixed"
	// Sentence accumulates whole sentences into chunks of up to ChunkSize
	// runes.  Sentences longer than ChunkSize are split as Fixed.
	Sentence Strategy = "sentence"
	// Paragraph accumulates whole paragraphs (blank-line separated) into
	// chunks of up to ChunkSize runes, falling back to Sentence and then
	// Fixed for oversize paragraphs.
	Paragraph Strategy = "paragraph"
	// Recursive splits on the coarsest separator ("\n\n", "\n", ". ", " ")
	// that produces compliant pieces, then merges adjacent pieces back
	// together up to ChunkSize, prepending Overlap runes of context to each
	// chunk after the first.
	Recursive Strategy = "recursive"
)

// Defaults used when the corresponding option is not given.
const (
	DefChunkSize = 512
	DefOverlap   = 64
)

// ParseStrategy converts a string to a Strategy, case as-is.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Fixed, Sentence, Paragraph, Recursive:
		return Strategy(s), nil
	case "":
		return Recursive, nil
	}
	return "", fmt.Errorf("unknown chunking strategy %q", s)
}

// Chunk is a single segment of the input text.  Start and End are rune
// offsets into the original text, End exclusive.  When overlap is in effect,
// Start already accounts for the prepended context.
type Chunk struct {
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// Chunker splits text into chunks.  The zero value is not usable, use New.
type Chunker struct {
	size     int
	overlap  int
	strategy Strategy
}

// Option is the signature of a Chunker option.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in runes.
func WithChunkSize(n int) Option {
	return func(c *Chunker) { c.size = n }
}

// WithOverlap sets the overlap in runes between adjacent chunks.  Overlap
// applies to the Fixed and Recursive strategies; Sentence and Paragraph
// preserve natural boundaries and ignore it.
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// WithStrategy sets the splitting strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Chunker) { c.strategy = s }
}

// New creates a Chunker with the given options, validating the
// configuration.
func New(opt ...Option) (*Chunker, error) {
	c := &Chunker{
		size:     DefChunkSize,
		overlap:  DefOverlap,
		strategy: Recursive,
	}
	for _, o := range opt {
		o(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", c.overlap)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", c.overlap, c.size)
	}
	if _, err := ParseStrategy(string(c.strategy)); err != nil {
		return nil, err
	}
	return c, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Strategy returns the configured strategy.
func (c *Chunker) Strategy() Strategy { return c.strategy }

// Split splits text into chunks.  Empty input yields no chunks.  Input
// shorter than the chunk size yields a single chunk identical to the input.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	rs := []rune(text)
	if len(rs) == 0 {
		return nil, nil
	}

	var spans []span
	switch c.strategy {
	case Fixed:
		spans = c.fixedSpans(span{0, len(rs)})
	case Sentence:
		spans = c.packSpans(sentenceSpans(rs, span{0, len(rs)}), c.fixedSpans)
	case Paragraph:
		spans = c.packSpans(paragraphSpans(rs), func(p span) []span {
			return c.packSpans(sentenceSpans(rs, p), c.fixedSpans)
		})
	case Recursive:
		spans = c.recursiveSpans(rs, span{0, len(rs)}, 0)
		spans = c.applyOverlap(spans)
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", c.strategy)
	}

	chunks := make([]Chunk, 0, len(spans))
	for i, sp := range spans {
		txt := string(rs[sp.start:sp.end])
		chunks = append(chunks, Chunk{
			Index:  i,
			Start:  sp.start,
			End:    sp.end,
			Text:   txt,
			Tokens: EstimateTokens(txt),
		})
	}
	return chunks, nil
}

// EstimateTokens returns a rough token count for s.  The heuristic is one
// token per four runes, rounded up, which tracks common BPE vocabularies
// closely enough for budgeting.
func EstimateTokens(s string) int {
	n := 0
	for range s {
		n++
	}
	return (n + 3) / 4
}

// StrategyInfo describes a strategy for discovery tools.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UsesOverlap bool   `json:"uses_overlap"`
}

// Strategies returns descriptions of all supported strategies.
func Strategies() []StrategyInfo {
	return []StrategyInfo{
		{Name: string(Fixed), Description: "Fixed-size rune windows with overlap.", UsesOverlap: true},
		{Name: string(Sentence), Description: "Whole sentences packed up to the chunk size.", UsesOverlap: false},
		{Name: string(Paragraph), Description: "Whole paragraphs packed up to the chunk size.", UsesOverlap: false},
		{Name: string(Recursive), Description: "Recursive separator splitting (paragraph, line, sentence, word) with overlap.", UsesOverlap: true},
	}
}

// Defaults is the chunker section of the configuration file.
type Defaults struct {
	ChunkSize int    `toml:"chunk_size"`
	Overlap   int    `toml:"overlap"`
	Strategy  string `toml:"strategy"`
}

// Options converts file defaults into chunker options, skipping zero values.
func (d Defaults) Options() []Option {
	var opts []Option
	if d.ChunkSize > 0 {
		opts = append(opts, WithChunkSize(d.ChunkSize))
	}
	if d.Overlap > 0 {
		opts = append(opts, WithOverlap(d.Overlap))
	}
	if d.Strategy != "" {
		opts = append(opts, WithStrategy(Strategy(d.Strategy)))
	}
	return opts
}
