package routes

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "root", input: "/", want: "/"},
		{name: "empty string", input: "", want: "/"},
		{name: "no leading slash", input: "about", want: "/about"},
		{name: "collapse slashes", input: "/auth//dashboards", want: "/auth/dashboards"},
		{name: "single dot", input: "/auth/./dashboards", want: "/auth/dashboards"},
		{name: "double dot", input: "/auth/x/../dashboards", want: "/auth/dashboards"},
		{name: "trailing slash", input: "/auth/dashboards/", want: "/auth/dashboards"},
		{name: "query stripped", input: "/login?next=/x", want: "/login"},
		{name: "fragment stripped", input: "/about#team", want: "/about"},
		{name: "valid escape", input: "/a%20b", want: "/a b"},
		{name: "encoded letter", input: "/auth/%64ashboards/x", want: "/auth/dashboards/x"},
		{name: "encoded dot segment", input: "/auth/x/%2e%2e/dashboards", want: "/auth/dashboards"},
		{name: "encoded slash", input: "/auth%2Fdashboards/x", wantErr: ErrEncodedSlashInSegment},
		{name: "encoded slash lowercase", input: "/auth%2fdashboards", wantErr: ErrEncodedSlashInSegment},
		{name: "encoded backslash", input: "/auth%5Cdashboards", wantErr: ErrEncodedSlashInSegment},
		{name: "backslash", input: "/auth\\dashboards", wantErr: ErrBackslashInPath},
		{name: "encoded nul", input: "/a%00b", wantErr: ErrNullByteInPath},
		{name: "bad escape", input: "/a%GG", wantErr: ErrInvalidPercentEscape},
		{name: "truncated escape", input: "/a%2", wantErr: ErrInvalidPercentEscape},
		{name: "escapes root", input: "/../secret", wantErr: ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Canonicalize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitTarget(t *testing.T) {
	path, query, fragment := SplitTarget("/a/b?x=1&y=2#frag")
	if path != "/a/b" || query != "x=1&y=2" || fragment != "frag" {
		t.Fatalf("SplitTarget = %q %q %q", path, query, fragment)
	}

	path, query, fragment = SplitTarget("/a#f?not-query")
	if path != "/a" || query != "" || fragment != "f?not-query" {
		t.Fatalf("SplitTarget with ? in fragment = %q %q %q", path, query, fragment)
	}
}
