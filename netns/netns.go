// Package netns implements named-network-namespace operations: listing
// the entries under /var/run/netns, creating and deleting them, and
// moving an interface into a target namespace, per spec.md's namespace
// operations section. Grounded on the polling/directory-walk idiom in
// the teacher's namespaces package, adapted from a /proc PID watch to a
// /var/run/netns named-namespace directory listing.
package netns

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/link"
	"github.com/EsteSystems/netctl/nlsock"
)

// DefaultDir is the canonical named-namespace directory, per spec.md's
// "/var/run/netns/<name>" convention.
const DefaultDir = "/var/run/netns"

// helperEnvVar, when set in a re-executed child's environment, tells
// that child to perform the bind-mount-and-exit dance instead of
// running the normal program entrypoint. RunHelperIfRequested checks
// for it; cmd/netctl's main calls that before anything else.
const helperEnvVar = "NETCTL_NETNS_HELPER_TARGET"

var (
	// ErrAlreadyExists is returned by Create when the named namespace
	// already has a placeholder file.
	ErrAlreadyExists = errors.New("netns: namespace already exists")
	// ErrNotFound is returned by Delete/Open when no placeholder exists
	// for the named namespace.
	ErrNotFound = errors.New("netns: namespace not found")
	// ErrHelperFailed is returned when the re-executed child responsible
	// for unshare+bind-mount exited non-zero.
	ErrHelperFailed = errors.New("netns: helper process failed")
)

// List returns the names of all named namespaces found under dir
// (typically /var/run/netns). A missing directory is reported as an
// empty list, matching spec.md's "absence of the directory means no
// named namespaces".
func List(dir string) ([]string, error) {
	d, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer d.Close()
	return d.Readdirnames(0)
}

// Create makes a new named namespace: ensuring dir exists, creating an
// empty placeholder file, then re-executing the current binary with
// CLONE_NEWNET so the child can unshare its network namespace and
// bind-mount /proc/self/ns/net onto the placeholder before exiting.
func Create(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("netns: mkdir %s: %w", dir, err)
	}
	path := dir + "/" + name
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyExists
		}
		return err
	}
	f.Close()

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), helperEnvVar+"="+path)
	cmd.SysProcAttr = &unix.SysProcAttr{Cloneflags: unix.CLONE_NEWNET}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: %v", ErrHelperFailed, err)
	}
	return nil
}

// RunHelperIfRequested performs the unshare-child's bind-mount-and-exit
// responsibility when invoked as the re-executed child of Create, and
// never returns in that case. The caller's main() should invoke this
// before any other startup work.
func RunHelperIfRequested() {
	target, ok := os.LookupEnv(helperEnvVar)
	if !ok {
		return
	}
	err := unix.Mount("/proc/self/ns/net", target, "", unix.MS_BIND, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "netns: bind mount failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Delete unmounts and removes the placeholder for the named namespace.
func Delete(dir, name string) error {
	path := dir + "/" + name
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := unix.Unmount(path, 0); err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("netns: unmount %s: %w", path, err)
	}
	return os.Remove(path)
}

// Open returns an open file descriptor onto the named namespace,
// suitable for passing (via Fd) to link.MoveToNetns.
func Open(dir, name string) (*os.File, error) {
	f, err := os.Open(dir + "/" + name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// MoveInterface moves the interface at ifindex into the named
// namespace, opening and closing the namespace handle internally.
func MoveInterface(s *nlsock.Socket, dir, name string, ifindex int32) error {
	f, err := Open(dir, name)
	if err != nil {
		return err
	}
	defer f.Close()
	return link.MoveToNetns(s, ifindex, int(f.Fd()))
}
