package config

import (
	"strings"
	"time"
)

// Tier names the three security tiers from §4.5.
type Tier string

const (
	TierOpen      Tier = "open"
	TierProtected Tier = "protected"
	TierScoped    Tier = "scoped"
)

// Backend names which store implementation the server will run.
type Backend int

const (
	BackendMemory Backend = iota
	BackendFile
	BackendLDAP
)

// Config is the fully resolved server configuration, loaded once at
// startup from the process environment (§6).
type Config struct {
	Bind string

	KeysDir string

	Backend     Backend
	StoragePath string

	LDAPURL    string
	LDAPBindDN string
	LDAPBindPW string
	LDAPBaseDN string

	Tier Tier

	ReadOnlyIDs []string

	LogFile  string
	LogLevel string

	IdleTimeout time.Duration
}

// Load resolves a Config from the environment. Backend selection follows
// §6: an LDAP URL wins over a storage path, which wins over the in-memory
// default.
func Load() (Config, error) {
	c := Config{
		Bind:        String("PHAROS_BIND", ":1050"),
		KeysDir:     String("PHAROS_KEYS_DIR", ""),
		StoragePath: String("PHAROS_STORAGE_PATH", ""),
		LDAPURL:     String("PHAROS_LDAP_URL", ""),
		LDAPBindDN:  String("PHAROS_LDAP_BIND_DN", ""),
		LDAPBindPW:  String("PHAROS_LDAP_BIND_PW", ""),
		LDAPBaseDN:  String("PHAROS_LDAP_BASE_DN", ""),
		Tier:        Tier(strings.ToLower(String("PHAROS_SECURITY_TIER", string(TierOpen)))),
		ReadOnlyIDs: StringList("PHAROS_READONLY_IDS"),
		LogFile:     String("PHAROS_LOG_FILE", ""),
		LogLevel:    String("PHAROS_LOG_LEVEL", ""),
	}

	switch c.Tier {
	case TierOpen, TierProtected, TierScoped:
	default:
		c.Tier = TierOpen
	}

	if c.LDAPURL != "" {
		c.Backend = BackendLDAP
	} else if c.StoragePath != "" {
		c.Backend = BackendFile
	} else {
		c.Backend = BackendMemory
	}

	if s := String("PHAROS_IDLE_TIMEOUT", ""); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.IdleTimeout = d
		}
	}

	return c, nil
}

// ReadOnlyLower returns the read-only id list case-folded, matching the
// case-folded session ids stored in session contexts.
func (c Config) ReadOnlyLower() []string {
	out := make([]string, len(c.ReadOnlyIDs))
	for i, id := range c.ReadOnlyIDs {
		out[i] = strings.ToLower(id)
	}
	return out
}
