package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/infrastructure/testutil"
)

func TestLoader_LoadMissingReturnsDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.ID != DefaultModel {
		t.Errorf("expected defaults, got model %q", cfg.Model.ID)
	}

	if _, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromFile should fail for a missing file")
	}
}

func TestLoader_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
model:
  id: claude-3-5-haiku-20241022
  custom:
    - id: llama3-long
      provider: ollama
      max_tokens: 65536
pipeline:
  policy: split
  chunk_concurrency: 2
usage:
  default_ceiling: 50000
  ceilings:
    team-key: 0
providers:
  ollama:
    timeout: 90s
`
	path := testutil.WriteFile(t, dir, "config.yaml", content)

	loader, _ := NewLoader(dir)
	cfg, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Model.ID != "claude-3-5-haiku-20241022" || cfg.Pipeline.Policy != "split" {
		t.Errorf("unexpected model/policy %q/%q", cfg.Model.ID, cfg.Pipeline.Policy)
	}
	if len(cfg.Model.Custom) != 1 || cfg.Model.Custom[0].MaxTokens != 65536 {
		t.Errorf("unexpected custom models %+v", cfg.Model.Custom)
	}
	if ceiling, ok := cfg.Usage.Ceilings["team-key"]; !ok || ceiling != 0 {
		t.Errorf("explicit zero ceiling must survive loading, got %v", cfg.Usage.Ceilings)
	}
	if cfg.Providers.Ollama.Timeout != 90*time.Second {
		t.Errorf("Ollama timeout = %v", cfg.Providers.Ollama.Timeout)
	}
	// unset fields keep defaults
	if cfg.Pipeline.PageConcurrency != DefaultPageConcurrency || cfg.Providers.Ollama.URL != DefaultOllamaURL {
		t.Error("unset fields should keep their defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoader_LoadTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[model]
id = "llama3"

[pipeline]
policy = "truncate"
format = "text"

[usage]
default_ceiling = 1000

[usage.ceilings]
ollama = 5000

[fetch]
timeout = "10s"
`
	path := testutil.WriteFile(t, dir, "config.toml", content)

	loader, _ := NewLoader(dir)
	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Model.ID != "llama3" || cfg.Pipeline.Policy != "truncate" || cfg.Pipeline.Format != "text" {
		t.Errorf("unexpected config %+v", cfg.Pipeline)
	}
	if cfg.Usage.Ceilings["ollama"] != 5000 || cfg.Usage.DefaultCeiling != 1000 {
		t.Errorf("unexpected usage %+v", cfg.Usage)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("fetch timeout = %v", cfg.Fetch.Timeout)
	}
}

func TestLoader_LoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.yaml", "model: [unclosed")

	loader, _ := NewLoader(dir)
	if _, err := loader.Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			loader, _ := NewLoader(dir)
			path := filepath.Join(dir, "nested", name)

			cfg := NewDefaultConfig()
			cfg.Pipeline.Policy = "split"
			cfg.Usage.Ceilings = map[string]int{"openai": 100000}
			cfg.Providers.Ollama.Timeout = 2 * time.Minute

			if err := loader.Save(cfg, path); err != nil {
				t.Fatalf("Save: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
			}

			loaded, err := loader.LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile: %v", err)
			}
			if loaded.Pipeline.Policy != "split" || loaded.Usage.Ceilings["openai"] != 100000 {
				t.Errorf("round trip lost values: %+v %+v", loaded.Pipeline, loaded.Usage)
			}
			if loaded.Providers.Ollama.Timeout != 2*time.Minute {
				t.Errorf("timeout = %v", loaded.Providers.Ollama.Timeout)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{EnvModel: "gpt-4o", EnvPolicy: "skip"}
	cfg := NewDefaultConfig()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Model.ID != "gpt-4o" || cfg.Pipeline.Policy != "skip" {
		t.Errorf("env not applied: %q %q", cfg.Model.ID, cfg.Pipeline.Policy)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("unset env should not change log level, got %q", cfg.Logging.Level)
	}
}
