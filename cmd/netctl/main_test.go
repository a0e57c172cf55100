package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EsteSystems/netctl/cmdlang"
)

func TestSourceForPrefersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netctl.conf")
	if err := os.WriteFile(path, []byte("interface eth0 set state up\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := sourceFor(path, []string{"ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if src != "interface eth0 set state up\n" {
		t.Errorf("got %q", src)
	}
}

func TestSourceForJoinsArgsWhenNoFile(t *testing.T) {
	src, err := sourceFor("", []string{"interface", "eth0", "set", "state", "up"})
	if err != nil {
		t.Fatal(err)
	}
	if src != "interface eth0 set state up" {
		t.Errorf("got %q", src)
	}
}

func TestSourceForFailsWithNoFileAndNoArgs(t *testing.T) {
	if _, err := sourceFor("", nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestAnyFatalIgnoresWarnings(t *testing.T) {
	errs := []cmdlang.ValidationError{{Field: "unknown:foo", Warning: true}}
	if anyFatal(errs) {
		t.Error("a warning-only list should not be fatal")
	}
	errs = append(errs, cmdlang.ValidationError{Field: "name", Warning: false})
	if !anyFatal(errs) {
		t.Error("a list containing a non-warning should be fatal")
	}
}
