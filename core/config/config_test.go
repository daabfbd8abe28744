package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsRunMode(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	t.Setenv("BOT_TOKEN", "from-env")
	path := writeConfig(t, "telegram:\n  token: from-file\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want from-env", cfg.Telegram.Token)
	}
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"unknown run mode": {
			Telegram: TelegramConfig{Token: "x", RunMode: "carrier-pigeon"},
		},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "x", RunMode: RunModeWebhook},
		},
		"unknown excluded update": {
			Telegram:  TelegramConfig{Token: "x"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline_query"}},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Normalize(&cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
