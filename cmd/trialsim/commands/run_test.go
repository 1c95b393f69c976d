package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestAPIKeyPrefersGeminiVariable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	key, err := apiKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "gemini-key" {
		t.Fatalf("expected gemini key, got %q", key)
	}
}

func TestAPIKeyFallsBackToGoogleVariable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	if key, err := apiKey(); err != nil || key != "google-key" {
		t.Fatalf("expected google key, got %q (%v)", key, err)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := apiKey(); err == nil {
		t.Fatalf("expected error without a key")
	}
}

func TestPhasesListsEveryPhaseAndMode(t *testing.T) {
	var out bytes.Buffer
	phasesCmd.SetOut(&out)
	if err := phasesCmd.RunE(phasesCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"voir-dire", "Closing Argument", "practice", "Aggressive opposing counsel"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestListenAddrDefaultsToLoopback(t *testing.T) {
	for addr, want := range map[string]string{
		":8080":          "127.0.0.1:8080",
		"0.0.0.0:8080":   "0.0.0.0:8080",
		"localhost:9000": "localhost:9000",
		"[::1]:8080":     "[::1]:8080",
	} {
		if got := listenAddr(addr); got != want {
			t.Fatalf("listenAddr(%q) = %q, want %q", addr, got, want)
		}
	}
}
