package runtimelog

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureWritesToStateDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	defer log.SetOutput(os.Stderr)

	path, cleanup := Configure("unit", os.Stderr)
	if want := filepath.Join(home, ".local", "state", "countdown", "unit.log"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	log.Printf("timer: hello")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "timer: hello") {
		t.Fatalf("log file = %q", data)
	}
}

func TestConfigureFallsBack(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	defer log.SetOutput(os.Stderr)

	// A file where the state directory should be blocks MkdirAll.
	if err := os.WriteFile(filepath.Join(home, ".local"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	path, cleanup := Configure("unit", &buf)
	defer cleanup()
	if path != "" {
		t.Fatalf("path = %q, want empty on fallback", path)
	}
	log.Printf("socketrpc: fallback")
	if !strings.Contains(buf.String(), "socketrpc: fallback") {
		t.Fatalf("fallback output = %q", buf.String())
	}
}
