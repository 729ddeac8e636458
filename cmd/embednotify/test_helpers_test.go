package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"embednotify/internal/config"
	"embednotify/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a config file pointing at host with its state kept
// inside a temp directory, and isolates HOME and WEBAPP_HOST.
func setupCLITestEnv(t *testing.T, host string, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("WEBAPP_HOST", "")
	os.Unsetenv("WEBAPP_HOST")

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithWebappHost(host)}, opts...)...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "embednotify.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[webapp]\nhost = %q\nrequest_timeout = %d\n\n[paths]\nstate_dir = %q\n\n[history]\nenabled = %t\nretention_days = %d\n\n[metrics]\ntextfile_path = %q\n\n[logging]\nformat = \"json\"\nlevel = \"error\"\n",
		cfg.Webapp.Host,
		cfg.Webapp.RequestTimeout,
		cfg.Paths.StateDir,
		cfg.History.Enabled,
		cfg.History.RetentionDays,
		cfg.Metrics.TextfilePath,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
