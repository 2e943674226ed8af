package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "A011",
			wantMsg: "Invalid host configuration",
			wantCat: CategoryConfig,
		},
		{
			name:    "storage error",
			code:    "A071",
			wantMsg: "Token store backend unreachable",
			wantCat: CategoryStorage,
		},
		{
			name:    "session error",
			code:    "A052",
			wantMsg: "Session expired",
			wantCat: CategorySession,
		},
		{
			name:    "unknown error code",
			code:    "A999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewCopiesTemplateSuggestion(t *testing.T) {
	err := New("A050")
	if err.Suggestion == "" {
		t.Fatal("expected template suggestion to be copied")
	}
	if err.DocURL != docBase+"A050" {
		t.Errorf("DocURL = %q", err.DocURL)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown backend %q", "etcd")
	if err.Message != `unknown backend "etcd"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
	if err.Error() != `unknown backend "etcd"` {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorString(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := New("A014").WithField("store.backend").Wrap(cause)

	want := "A014: store.backend: Invalid token store configuration: dial tcp: refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "A070") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("A012")
	wrapped := fmt.Errorf("loading: %w", orig)
	if got := FromError(wrapped, "A070"); got != orig {
		t.Error("FromError should return the existing *Error")
	}

	plain := stderrors.New("boom")
	got := FromError(plain, "A070")
	if got.Code != "A070" || got.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New("A053"))
	if !Is(err, "A053") {
		t.Error("Is(A053) = false")
	}
	if Is(err, "A052") {
		t.Error("Is(A052) = true")
	}
	if Is(stderrors.New("x"), "A053") {
		t.Error("Is on a plain error = true")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("A011").
		WithField("hosts.admin").
		WithDetail("hosts.admin equals hosts.main").
		WithSuggestion("Use admin.example.com").
		WithExample("hosts:\n  admin: admin.example.com")

	out := err.Format()
	for _, want := range []string{
		"ERROR A011: Invalid host configuration",
		"hosts.admin",
		"hosts.admin equals hosts.main",
		"Hint: Use admin.example.com",
		"Example:",
		"    hosts:",
		"Learn more: " + docBase + "A011",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains ANSI codes with colors disabled")
	}
}

func TestFormatColors(t *testing.T) {
	EnableColors()
	out := New("A010").Format()
	if !strings.Contains(out, colorRed) {
		t.Error("expected ANSI color codes when colors are enabled")
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("A090").Wrap(stderrors.New("connection refused"))

	var got map[string]string
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("FormatJSON is not valid JSON: %v", e)
	}
	if got["code"] != "A090" {
		t.Errorf("code = %q", got["code"])
	}
	if got["category"] != string(CategoryService) {
		t.Errorf("category = %q", got["category"])
	}
	if got["cause"] != "connection refused" {
		t.Errorf("cause = %q", got["cause"])
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var b strings.Builder
	Fprint(&b, fmt.Errorf("wrap: %w", New("A050")))
	if !strings.Contains(b.String(), "ERROR A050: Not logged in") {
		t.Errorf("Fprint(*Error) = %q", b.String())
	}

	b.Reset()
	Fprint(&b, stderrors.New("plain failure"))
	if !strings.Contains(b.String(), "ERROR: plain failure") {
		t.Errorf("Fprint(plain) = %q", b.String())
	}
}

func TestFprintJSON(t *testing.T) {
	var b strings.Builder
	FprintJSON(&b, stderrors.New("plain"))

	var got map[string]string
	if err := json.Unmarshal([]byte(b.String()), &got); err != nil {
		t.Fatalf("not JSON: %q", b.String())
	}
	if got["message"] != "plain" {
		t.Errorf("message = %q", got["message"])
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestRegistryComplete(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%q) missing", code)
		}
		if tmpl.Category == "" || tmpl.Message == "" || tmpl.DocURL == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}
}

func TestRegister(t *testing.T) {
	Register("A998", ErrorTemplate{Category: CategoryCLI, Message: "custom"})
	defer delete(registry, "A998")

	if New("A998").Message != "custom" {
		t.Error("registered template not used")
	}
}
