package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netctl.toml")
	contents := `
[netns]
dir = "/custom/netns"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Netns.Dir != "/custom/netns" {
		t.Errorf("netns.dir = %q, want /custom/netns", cfg.Netns.Dir)
	}
	if cfg.Eventsocket.PollTimeoutMs != -1 {
		t.Errorf("eventsocket.poll_timeout_ms = %d, want the default -1", cfg.Eventsocket.PollTimeoutMs)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/no/such/path.toml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDefaultIsUsableStandalone(t *testing.T) {
	cfg := Default()
	if cfg.Netns.Dir == "" {
		t.Error("default netns dir should not be empty")
	}
}
