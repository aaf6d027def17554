package formatting_test

import (
	"testing"

	"github.com/JaimeStill/binder/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"50MB", 50 * 1024 * 1024, false},
		{"64 kb", 64 * 1024, false},
		{"512", 512, false},
		{"1.5GB", 1536 * 1024 * 1024, false},
		{"", 0, true},
		{"ten MB", 0, true},
		{"5QB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		prec int
		want string
	}{
		{0, 2, "0 B"},
		{1024, 0, "1 KB"},
		{1536, 1, "1.5 KB"},
		{5 * 1024 * 1024, -1, "5 MB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.prec); got != tt.want {
			t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.prec, got, tt.want)
		}
	}
}
