package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}
}

func TestLoadRejectsUnknownQuotaPolicy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("FREE_QUOTA_POLICY", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown quota policy to fail")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("FREE_QUOTA_POLICY", " Strict ")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GetFreeQuotaPolicy() != "strict" {
		t.Fatalf("expected normalized strict policy, got %q", cfg.GetFreeQuotaPolicy())
	}
	if len(cfg.GetCORSOrigins()) != 2 || cfg.GetCORSAllowAll() {
		t.Fatalf("unexpected CORS config: %v allowAll=%v", cfg.GetCORSOrigins(), cfg.GetCORSAllowAll())
	}
	if cfg.IsLLMClassifierEnabled() && cfg.GetGeminiAPIKey() == "" {
		t.Fatal("LLM classifier must be disabled without an API key")
	}
}

func TestSplitCSVDropsBlanks(t *testing.T) {
	got := splitCSV(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split: %#v", got)
	}
}
