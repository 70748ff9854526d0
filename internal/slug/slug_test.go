package slug

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"PROJ", "proj", false},
		{"My Project", "my-project", false},
		{"data_pipeline", "data-pipeline", false},
		{"Ops (2024)", "ops-2024", false},
		{"--edge--", "edge", false},
		{"42", "42", false},
		{"", "", true},
		{"!!!", "", true},
	}
	for _, tt := range tests {
		got, err := Identifier(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Identifier(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Identifier(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifierLengthLimit(t *testing.T) {
	if _, err := Identifier(strings.Repeat("a", 101)); err == nil {
		t.Error("expected error for identifier over 100 bytes")
	}
	if _, err := Identifier(strings.Repeat("a", 100)); err != nil {
		t.Errorf("unexpected error at exactly 100 bytes: %v", err)
	}
}
