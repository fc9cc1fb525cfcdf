// Package position records where declarations, annotations and
// diagnostics originate in declaration manifests.
package position

import (
	"fmt"
	"path/filepath"
)

// Position represents a single point in a manifest or source file
type Position struct {
	Filename string // Manifest or source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Offset   int    // 0-based byte offset, 0 when unknown
}

// At builds a position from a line/column pair as reported by decoders
// that do not track byte offsets.
func At(filename string, line, column int) Position {
	return Position{Filename: filename, Line: line, Column: column}
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String returns a string representation of the position
func (p Position) String() string {
	if !p.IsValid() {
		if p.Filename != "" {
			return filepath.Base(p.Filename)
		}
		return "-"
	}
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before returns true if this position comes before other
func (p Position) Before(other Position) bool {
	if p.Filename != other.Filename {
		return p.Filename < other.Filename
	}
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Span represents a range between two positions
type Span struct {
	Start Position // Starting position (inclusive)
	End   Position // Ending position (exclusive)
}

// Point returns a zero-width span at pos.
func Point(pos Position) Span {
	return Span{Start: pos, End: pos}
}

// IsValid returns true if the span is valid
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid() &&
		s.Start.Filename == s.End.Filename &&
		!s.End.Before(s.Start)
}

// String returns a string representation of the span
func (s Span) String() string {
	if !s.IsValid() {
		return s.Start.String()
	}
	if s.Start == s.End {
		return s.Start.String()
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%s-%d", s.Start.String(), s.End.Column)
	}
	return fmt.Sprintf("%s-%d:%d", s.Start.String(), s.End.Line, s.End.Column)
}

// Union returns a span that encompasses both this span and other
func (s Span) Union(other Span) Span {
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() || s.Start.Filename != other.Start.Filename {
		return s
	}

	start := s.Start
	if other.Start.Before(start) {
		start = other.Start
	}
	end := s.End
	if end.Before(other.End) {
		end = other.End
	}
	return Span{Start: start, End: end}
}
