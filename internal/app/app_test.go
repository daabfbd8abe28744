package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m3rciful/travelwallet/core/database"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
database:
  path: wallet.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != "longpoll" {
		t.Errorf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Database.Driver != database.DriverSQLite {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Rates.BaseURL == "" || cfg.Rates.TimeoutSeconds != 10 {
		t.Errorf("rates = %+v", cfg.Rates)
	}
	if cfg.Wallet.HistoryLimit != 10 || cfg.Wallet.QuoteTimeoutSeconds != 10 {
		t.Errorf("wallet = %+v", cfg.Wallet)
	}
	if cfg.Metrics.Listen != "" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Error("CoreConfig must expose the embedded config")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
wallet:
  history_limit: 5
`)
	t.Setenv("WALLET_HISTORY_LIMIT", "25")
	t.Setenv("CURRENCY_ACCESS_KEY", "secret")
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Wallet.HistoryLimit != 25 {
		t.Errorf("history limit = %d", cfg.Wallet.HistoryLimit)
	}
	if cfg.Rates.AccessKey != "secret" {
		t.Errorf("access key = %q", cfg.Rates.AccessKey)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Errorf("metrics listen = %q", cfg.Metrics.Listen)
	}
}

func TestLoadRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"missing token": `
database:
  driver: sqlite
`,
		"bad driver": `
telegram:
  token: "123:abc"
database:
  driver: oracle
`,
		"negative history": `
telegram:
  token: "123:abc"
wallet:
  history_limit: -1
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
