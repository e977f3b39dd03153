package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTypedHelpers(t *testing.T) {
	t.Setenv("OF_INT", "42")
	t.Setenv("OF_BAD_INT", "x")
	t.Setenv("OF_BOOL", "yes")
	t.Setenv("OF_SECONDS", "90")
	t.Setenv("OF_LIST", " a, ,b ")

	if got := Int("OF_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("OF_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if !Bool("OF_BOOL", false) {
		t.Fatal("Bool: expected true")
	}
	if Bool("OF_MISSING", false) {
		t.Fatal("Bool fallback: expected false")
	}
	if got := Seconds("OF_SECONDS", time.Second); got != 90*time.Second {
		t.Fatalf("Seconds: got %s", got)
	}
	if got := List("OF_LIST", ""); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got %#v", got)
	}
}

func TestPortValidation(t *testing.T) {
	t.Setenv("OF_PORT", "70000")
	if _, err := Port("OF_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	if p, err := Port("OF_PORT_MISSING", "8080"); err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q %v", p, err)
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("OF_TZ_MISSING", "America/Guayaquil")
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "America/Guayaquil" {
		t.Fatalf("unexpected location %s", loc)
	}
	t.Setenv("OF_TZ", "Not/AZone")
	if _, err := Location("OF_TZ", "UTC"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("OF_DOTENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("OF_DOTENV_VALUE", "")
	os.Unsetenv("OF_DOTENV_VALUE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := String("OF_DOTENV_VALUE", ""); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
