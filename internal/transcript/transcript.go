// Package transcript turns recognized speech chunks into timestamped lines.
package transcript

import (
	"fmt"
	"math"
	"strings"
)

// DefaultMaxDuration is the longest window, in seconds, printed as one line.
const DefaultMaxDuration = 30.0

// MaxWindows bounds the number of windows Split produces. Past it the
// windows widen evenly to cover the segment.
const MaxWindows = 1 << 16

// Chunk is a recognized span as returned by a recognizer.
// Start and End are nil when the recognizer did not report them.
type Chunk struct {
	Start *float64
	End   *float64
	Text  string
}

// Segment is a time-bounded span of text, in seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// String formats the segment as "[start-end] text".
func (s Segment) String() string {
	return fmt.Sprintf("[%.2f-%.2f] %s", s.Start, s.End, s.Text)
}

// Normalize fills in missing timestamps: a missing start becomes 0 and a
// missing end becomes start + maxDuration.
func Normalize(c Chunk, maxDuration float64) Segment {
	seg := Segment{Text: c.Text}
	if c.Start != nil {
		seg.Start = *c.Start
	}
	if c.End != nil {
		seg.End = *c.End
	} else {
		seg.End = seg.Start + maxDuration
	}
	return seg
}

// Split divides seg into ceil(duration/maxDuration) consecutive windows of at
// most maxDuration and hands each window a proportional, character-indexed
// slice of the text. The cut is not word-aware. At least one window and at
// most MaxWindows are returned, and the last window ends exactly at seg.End.
func Split(seg Segment, maxDuration float64) []Segment {
	count, width := 1, maxDuration
	if maxDuration > 0 {
		n := math.Ceil(seg.Duration() / maxDuration)
		switch {
		case math.IsNaN(n) || n <= 1:
		case math.IsInf(n, 1) || n > MaxWindows:
			count = MaxWindows
			width = seg.Duration() / MaxWindows
		default:
			count = int(n)
		}
	}

	text := []rune(seg.Text)
	out := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		start := seg.Start + float64(i)*width
		end := math.Min(seg.Start+float64(i+1)*width, seg.End)
		if i == count-1 {
			end = seg.End
		}

		from := cut(i, len(text), count)
		to := cut(i+1, len(text), count)
		out = append(out, Segment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(string(text[from:to])),
		})
	}
	return out
}

// cut returns the text index of boundary i, rounding half to even.
func cut(i, length, count int) int {
	return int(math.RoundToEven(float64(i) * float64(length) / float64(count)))
}

// Lines renders chunks as timestamped lines, splitting any chunk longer than
// maxDuration.
func Lines(chunks []Chunk, maxDuration float64) []string {
	var lines []string
	for _, c := range chunks {
		seg := Normalize(c, maxDuration)
		if seg.Duration() > maxDuration {
			for _, sub := range Split(seg, maxDuration) {
				lines = append(lines, sub.String())
			}
			continue
		}
		seg.Text = strings.TrimSpace(seg.Text)
		lines = append(lines, seg.String())
	}
	return lines
}

// Render joins the timestamped lines of chunks with newlines.
func Render(chunks []Chunk, maxDuration float64) string {
	return strings.Join(Lines(chunks, maxDuration), "\n")
}
