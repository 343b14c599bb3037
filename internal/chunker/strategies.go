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

// In this file: span arithmetic for the individual splitting strategies.

import "unicode"

// span is a half-open rune interval [start, end) in the source text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// fixedSpans cuts sp into windows of at most c.size runes.  The window start
// advances by c.size-c.overlap runes, so consecutive windows share c.overlap
// runes of context.
func (c *Chunker) fixedSpans(sp span) []span {
	if sp.len() <= 0 {
		return nil
	}
	step := c.size - c.overlap
	var out []span
	for i := sp.start; ; i += step {
		end := i + c.size
		if end >= sp.end {
			out = append(out, span{i, sp.end})
			break
		}
		out = append(out, span{i, end})
	}
	return out
}

// sentenceSpans splits sp into sentence spans.  A sentence ends at a run of
// terminator runes ('.', '!', '?', '…', plus trailing closing quotes or
// parentheses) followed by whitespace or the end of the span.  Whitespace
// between sentences belongs to neither.
func sentenceSpans(rs []rune, sp span) []span {
	var out []span
	start := sp.start
	for i := sp.start; i < sp.end; i++ {
		if !isSentenceEnd(rs[i]) {
			continue
		}
		j := i
		for j+1 < sp.end && (isSentenceEnd(rs[j+1]) || isClosing(rs[j+1])) {
			j++
		}
		if j+1 < sp.end && !unicode.IsSpace(rs[j+1]) {
			i = j
			continue // e.g. a decimal point or an abbreviated domain name
		}
		out = append(out, span{start, j + 1})
		k := j + 1
		for k < sp.end && unicode.IsSpace(rs[k]) {
			k++
		}
		start, i = k, k-1
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

// paragraphSpans splits the whole text into paragraphs.  A paragraph break
// is a whitespace run containing at least two newlines.
func paragraphSpans(rs []rune) []span {
	var out []span
	start, i := 0, 0
	for i < len(rs) {
		if rs[i] != '\n' {
			i++
			continue
		}
		j, nl := i, 0
		for j < len(rs) && unicode.IsSpace(rs[j]) {
			if rs[j] == '\n' {
				nl++
			}
			j++
		}
		if nl >= 2 {
			if start < i {
				out = append(out, span{start, i})
			}
			start = j
		}
		i = j
	}
	if start < len(rs) {
		out = append(out, span{start, len(rs)})
	}
	return out
}

// packSpans greedily merges consecutive parts into spans of at most c.size
// runes.  Parts that alone exceed the size are handed to fallback.  The gap
// between merged parts (skipped whitespace) counts towards the size.
func (c *Chunker) packSpans(parts []span, fallback func(span) []span) []span {
	var (
		out []span
		cur span
		ok  bool
	)
	flush := func() {
		if ok {
			out = append(out, cur)
			ok = false
		}
	}
	for _, p := range parts {
		if p.len() > c.size {
			flush()
			out = append(out, fallback(p)...)
			continue
		}
		switch {
		case !ok:
			cur, ok = p, true
		case p.end-cur.start <= c.size:
			cur.end = p.end
		default:
			flush()
			cur, ok = p, true
		}
	}
	flush()
	return out
}

// separator hierarchy for the recursive strategy, coarsest first.
var recursiveSeps = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// recursiveSpans splits sp on the first separator level that divides it,
// recursing into still-oversize pieces with finer separators, and merges the
// results back up to c.size.  When no separator divides the text, it falls
// back to fixed windows.
func (c *Chunker) recursiveSpans(rs []rune, sp span, depth int) []span {
	if sp.len() <= c.size {
		return []span{sp}
	}
	if depth >= len(recursiveSeps) {
		return c.fixedSpans(sp)
	}
	parts := splitSpan(rs, sp, recursiveSeps[depth])
	if len(parts) <= 1 {
		return c.recursiveSpans(rs, sp, depth+1)
	}
	var flat []span
	for _, p := range parts {
		if p.len() > c.size {
			flat = append(flat, c.recursiveSpans(rs, p, depth+1)...)
		} else {
			flat = append(flat, p)
		}
	}
	return c.mergeSpans(flat)
}

// splitSpan splits sp at each occurrence of sep, keeping the separator
// attached to the preceding part.
func splitSpan(rs []rune, sp span, sep []rune) []span {
	var out []span
	start := sp.start
	for i := sp.start; i+len(sep) <= sp.end; i++ {
		if !runesEqual(rs[i:i+len(sep)], sep) {
			continue
		}
		out = append(out, span{start, i + len(sep)})
		start = i + len(sep)
		i += len(sep) - 1
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mergeSpans merges adjacent spans while the merged span stays within
// c.size.
func (c *Chunker) mergeSpans(parts []span) []span {
	var (
		out []span
		cur span
		ok  bool
	)
	for _, p := range parts {
		switch {
		case !ok:
			cur, ok = p, true
		case p.end-cur.start <= c.size:
			cur.end = p.end
		default:
			out = append(out, cur)
			cur = p
		}
	}
	if ok {
		out = append(out, cur)
	}
	return out
}

// applyOverlap extends the start of every span after the first backwards by
// c.overlap runes, clamped at the start of the preceding span.  Spans that
// already overlap their predecessor (produced by the fixed-window fallback)
// are left alone.
func (c *Chunker) applyOverlap(spans []span) []span {
	if c.overlap == 0 {
		return spans
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			continue
		}
		start := spans[i].start - c.overlap
		if start < spans[i-1].start {
			start = spans[i-1].start
		}
		spans[i].start = start
	}
	return spans
}
