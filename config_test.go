package taskrun

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "id: worker-pool\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ID != "worker-pool" {
		t.Errorf("ID = %q, want worker-pool", cfg.ID)
	}
	if cfg.Workers != defaultWorkers {
		t.Errorf("Workers = %d, want default %d", cfg.Workers, defaultWorkers)
	}
	if cfg.Scheduler != "fifo" {
		t.Errorf("Scheduler = %q, want fifo", cfg.Scheduler)
	}
	if cfg.GracefulTimeout != 5*time.Second {
		t.Errorf("GracefulTimeout = %v, want 5s", cfg.GracefulTimeout)
	}
	if cfg.UnstableHooks {
		t.Error("UnstableHooks = true, want false by default")
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfigFile(t, `
id: traced-pool
workers: 8
scheduler: priority
unstable_hooks: true
graceful_timeout: 30s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Scheduler != "priority" {
		t.Errorf("Scheduler = %q, want priority", cfg.Scheduler)
	}
	if !cfg.UnstableHooks {
		t.Error("UnstableHooks = false, want true")
	}
	if cfg.GracefulTimeout != 30*time.Second {
		t.Errorf("GracefulTimeout = %v, want 30s", cfg.GracefulTimeout)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad scheduler":    "scheduler: roundrobin\n",
		"negative workers": "workers: -1\n",
		"negative timeout": "graceful_timeout: -5s\n",
		"bad yaml":         "workers: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfigFile(t, content)); err == nil {
				t.Fatal("LoadConfig accepted invalid config")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadConfig accepted a missing file")
	}
}

func TestConfigNewBuilder(t *testing.T) {
	cfg := Config{
		ID:            "cfg-pool",
		Workers:       3,
		Scheduler:     "priority",
		UnstableHooks: true,
	}

	b := cfg.NewBuilder()
	if !b.UnstableHooksEnabled() {
		t.Error("builder capability not enabled from config")
	}

	pool := b.Build()
	defer pool.Stop()
	if pool.ID() != "cfg-pool" {
		t.Errorf("pool ID = %q, want cfg-pool", pool.ID())
	}
	if pool.WorkerCount() != 3 {
		t.Errorf("WorkerCount = %d, want 3", pool.WorkerCount())
	}
}
