package config

import (
	"testing"
	"time"
)

func TestLoadBackendPrecedence(t *testing.T) {
	t.Setenv("PHAROS_LDAP_URL", "")
	t.Setenv("PHAROS_STORAGE_PATH", "")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Backend != BackendMemory {
		t.Fatalf("expected BackendMemory, got %v", c.Backend)
	}

	t.Setenv("PHAROS_STORAGE_PATH", "/tmp/pharos.json")
	c, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Backend != BackendFile {
		t.Fatalf("expected BackendFile, got %v", c.Backend)
	}

	t.Setenv("PHAROS_LDAP_URL", "ldap://dir.example.com")
	c, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Backend != BackendLDAP {
		t.Fatalf("expected BackendLDAP (LDAP wins over storage path), got %v", c.Backend)
	}
}

func TestLoadTierDefaultsToOpenOnInvalid(t *testing.T) {
	t.Setenv("PHAROS_SECURITY_TIER", "bogus")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Tier != TierOpen {
		t.Fatalf("expected TierOpen fallback, got %v", c.Tier)
	}
}

func TestLoadIdleTimeout(t *testing.T) {
	t.Setenv("PHAROS_IDLE_TIMEOUT", "")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.IdleTimeout != 0 {
		t.Fatalf("expected IdleTimeout disabled by default, got %v", c.IdleTimeout)
	}

	t.Setenv("PHAROS_IDLE_TIMEOUT", "30s")
	c, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.IdleTimeout != 30*time.Second {
		t.Fatalf("expected a 30s IdleTimeout, got %v", c.IdleTimeout)
	}

	t.Setenv("PHAROS_IDLE_TIMEOUT", "not-a-duration")
	c, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.IdleTimeout != 0 {
		t.Fatalf("expected an unparseable duration to leave IdleTimeout disabled, got %v", c.IdleTimeout)
	}
}

func TestStringList(t *testing.T) {
	t.Setenv("PHAROS_READONLY_IDS", "guest, readonly ,  , admin")
	got := StringList("PHAROS_READONLY_IDS")
	want := []string{"guest", "readonly", "admin"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
