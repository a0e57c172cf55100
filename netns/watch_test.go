package netns

import (
	"context"
	"os"
	"testing"
	"time"
)

func makeFakeProc(t *testing.T) string {
	d := t.TempDir()
	mustSymlink := func(target, link string) {
		if err := os.MkdirAll(link[:len(link)-len("/net")], 0777); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(target, link); err != nil {
			t.Fatal(err)
		}
	}
	// Two PIDs with namespaces.
	mustSymlink(d+"/proc/123/ns/net:[4026532008]", d+"/proc/123/ns/net")
	mustSymlink(d+"/proc/456/ns/net:[4026532010]", d+"/proc/456/ns/net")
	// One PID with no namespace.
	if err := os.MkdirAll(d+"/proc/789/", 0777); err != nil {
		t.Fatal(err)
	}
	// Malformed entries that must be skipped, not crash the scan.
	mustSymlink(d+"/proc/457/ns/net:[]", d+"/proc/457/ns/net")
	mustSymlink(d+"/proc/458/ns/net[]", d+"/proc/458/ns/net")
	mustSymlink(d+"/proc/apple/ns/net:[4026532010]", d+"/proc/apple/ns/net")
	mustSymlink(d+"/proc/459/ns/net:[orange]", d+"/proc/459/ns/net")
	return d + "/proc"
}

func TestWatchProcessNamespacesCancelStopsCleanly(t *testing.T) {
	procfs := makeFakeProc(t)

	nsChan := make(chan string)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go WatchProcessNamespaces(ctx, procfs, nsChan)

	ns := make(map[string]struct{})
	for n := range nsChan {
		ns[n] = struct{}{}
	}
	if len(ns) != 2 {
		t.Errorf("expected 2 distinct namespace inodes, got %d: %v", len(ns), ns)
	}
}

func TestWatchProcessNamespacesBadProcFails(t *testing.T) {
	nsChan := make(chan string)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WatchProcessNamespaces(ctx, "/ThisPathShouldNotExist", nsChan); err != ErrCantReadProc {
		t.Errorf("expected ErrCantReadProc, got %v", err)
	}
}

func TestWatchProcessNamespacesProcAsFileFails(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notadir")
	if err != nil {
		t.Fatal(err)
	}
	nsChan := make(chan string)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WatchProcessNamespaces(ctx, f.Name(), nsChan); err != ErrCantReadProc {
		t.Errorf("expected ErrCantReadProc, got %v", err)
	}
}
