package pdfread

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"D:20240102030405Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"D:20240102030405", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"D:2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"D:202403", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"20240102", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"D:20240301120000+02'00'", time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("", 2*3600)), true},
		{"D:20240301120000-0530", time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("", -(5*3600 + 30*60))), true},
		// Out-of-range components clamp instead of failing.
		{"D:20241399256199", time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"D:20", time.Time{}, false},
		{"D:abcd", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
