package util

import "testing"

func TestExtractHost(t *testing.T) {
	cases := map[string]string{
		"https://example.co.uk/path?x=1": "example.co.uk",
		"http://sub.example.com:8080/":   "sub.example.com",
		"not a url":                      "not a url",
	}
	for in, want := range cases {
		if got := ExtractHost(in); got != want {
			t.Errorf("ExtractHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTLD(t *testing.T) {
	cases := map[string]string{
		"example.co.uk":  "uk",
		"example.com":    "com",
		"example.de":     "de",
		"localhost":      "",
		"example.com.":   "com",
	}
	for in, want := range cases {
		if got := TLD(in); got != want {
			t.Errorf("TLD(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractOrigin(t *testing.T) {
	if got := ExtractOrigin("data:text/plain;base64,abc"); got != "" {
		t.Errorf("expected empty origin for data URL, got %q", got)
	}
	if got := ExtractOrigin("blob:https://example.com/uuid"); got != "https://example.com" {
		t.Errorf("blob origin = %q", got)
	}
	if got := ExtractOrigin("https://example.com:8443/a/b"); got != "https://example.com:8443" {
		t.Errorf("origin = %q", got)
	}
}
