package htmlutil

import (
	"strings"
	"testing"
)

func TestToText(t *testing.T) {
	in := "<html><head><title>502</title></head><body>\n<h1>Bad   Gateway</h1>\n<p>nginx &amp; friends</p></body></html>"
	got := ToText(in)
	for _, bad := range []string{"<h1>", "</p>", "&amp;", "\n"} {
		if strings.Contains(got, bad) {
			t.Errorf("ToText(%q) = %q, still contains %q", in, got, bad)
		}
	}
	if !strings.Contains(got, "Bad Gateway") || !strings.Contains(got, "nginx & friends") {
		t.Errorf("ToText = %q", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"<!DOCTYPE html><html></html>", true},
		{"  <html><body>x</body></html>", true},
		{"<h1>403 Forbidden</h1>", true},
		{"unauthorized access", false},
		{`{"code":"invalid","message":"bad flux"}`, false},
		{"a < b", false},
	}
	for _, tt := range tests {
		if got := LooksLikeHTML(tt.in); got != tt.want {
			t.Errorf("LooksLikeHTML(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
