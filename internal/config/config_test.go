package config

import "testing"

func TestLoadRequiresIdentityKey(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "short")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail with a weak identity key")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "this_is_a_valid_long_identity_key_123456")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite default driver, got %q", cfg.DBDriver)
	}
	if cfg.SessionCookieName != "bc_session" || cfg.CSRFCookieName != "bc_csrf" {
		t.Fatalf("unexpected cookie names: %q %q", cfg.SessionCookieName, cfg.CSRFCookieName)
	}
	if cfg.IdentityMode != "builtin" {
		t.Fatalf("expected builtin identity mode, got %q", cfg.IdentityMode)
	}
}

func TestLoadPasswordBounds(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "this_is_a_valid_long_identity_key_123456")
	t.Setenv("PASSWORD_MIN_LENGTH", "16")
	t.Setenv("PASSWORD_MAX_LENGTH", "12")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail for invalid password bounds")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "this_is_a_valid_long_identity_key_123456")
	t.Setenv("DB_DRIVER", "oracle")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail for an unknown DB driver")
	}
}

func TestLoadRequiresDSNForServerDrivers(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "this_is_a_valid_long_identity_key_123456")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("APP_DB_DSN", "")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail without a DSN for postgres")
	}
}

func TestLoadRejectsInsecureCookiesOnPublicListen(t *testing.T) {
	t.Setenv("IDENTITY_JWT_KEY", "this_is_a_valid_long_identity_key_123456")
	t.Setenv("LISTEN_ADDR", "0.0.0.0:8080")
	t.Setenv("COOKIE_SECURE", "false")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to reject insecure cookies on a public listen address")
	}
}
