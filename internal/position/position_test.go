package position

import (
	"testing"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		pos      Position
		isValid  bool
	}{
		{
			name:     "Valid position with filename",
			pos:      Position{Filename: "shapes.yaml", Line: 10, Column: 5},
			isValid:  true,
			expected: "shapes.yaml:10:5",
		},
		{
			name:     "Valid position without filename",
			pos:      Position{Line: 1, Column: 1},
			isValid:  true,
			expected: "1:1",
		},
		{
			name:     "Nested directory is trimmed",
			pos:      At("/tmp/unit/lang.yaml", 3, 7),
			isValid:  true,
			expected: "lang.yaml:3:7",
		},
		{
			name:     "Invalid position - zero line",
			pos:      Position{Filename: "a.yaml", Line: 0, Column: 1},
			isValid:  false,
			expected: "a.yaml",
		},
		{
			name:     "Invalid position - negative offset",
			pos:      Position{Line: 1, Column: 1, Offset: -1},
			isValid:  false,
			expected: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsValid(); got != tt.isValid {
				t.Errorf("Expected IsValid() = %v, got %v", tt.isValid, got)
			}
			if got := tt.pos.String(); got != tt.expected {
				t.Errorf("Expected String() = %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSpan(t *testing.T) {
	start := At("m.yaml", 2, 3)
	end := At("m.yaml", 2, 9)
	span := Span{Start: start, End: end}

	if !span.IsValid() {
		t.Fatalf("Expected span %v to be valid", span)
	}
	if got := span.String(); got != "m.yaml:2:3-9" {
		t.Errorf("Expected m.yaml:2:3-9, got %s", got)
	}
	if got := Point(start).String(); got != "m.yaml:2:3" {
		t.Errorf("Expected m.yaml:2:3, got %s", got)
	}

	reversed := Span{Start: end, End: start}
	if reversed.IsValid() {
		t.Errorf("Expected reversed span to be invalid")
	}

	other := Span{Start: At("m.yaml", 4, 1), End: At("m.yaml", 5, 2)}
	union := span.Union(other)
	if union.Start != start || union.End != other.End {
		t.Errorf("Expected union %v..%v, got %v", start, other.End, union)
	}
	if got := union.String(); got != "m.yaml:2:3-5:2" {
		t.Errorf("Expected m.yaml:2:3-5:2, got %s", got)
	}

	foreign := Span{Start: At("x.yaml", 1, 1), End: At("x.yaml", 1, 2)}
	if got := span.Union(foreign); got != span {
		t.Errorf("Expected union across files to keep receiver, got %v", got)
	}
}
