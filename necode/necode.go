// Package necode collects the small set of error values every object
// family (link, ipaddr, route, ...) maps kernel responses onto, so the
// mapping rule in spec.md §4.4 lives in one place instead of being
// reimplemented per package.
package necode

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/nlsock"
)

// Sentinel errors shared by every object family.
var (
	ErrNotFound      = errors.New("necode: object not found")
	ErrAlreadyExists = errors.New("necode: object already exists")
	ErrBusy          = errors.New("necode: object busy")

	ErrBufferTooSmall          = errors.New("necode: builder buffer too small")
	ErrInterfaceNotFound       = fmt.Errorf("link: %w", ErrNotFound)
	ErrNotABond                = errors.New("link: not a bond")
	ErrNotABridge              = errors.New("link: not a bridge")
	ErrNoBondNameAvailable     = errors.New("link: no bond name available")
	ErrInterfaceAlreadyEnslaved = errors.New("link: interface already enslaved")
	ErrNoNexthops              = errors.New("route: ECMP route has no next-hops")
	ErrVerificationFailed      = errors.New("necode: post-operation state check did not match the request")
)

// FromKernel maps a transactor error onto the closed taxonomy in
// spec.md §7: ENOENT becomes ErrNotFound, EEXIST becomes
// ErrAlreadyExists, EBUSY becomes ErrBusy, anything else is returned
// wrapped but otherwise untranslated (the caller can still unwrap to a
// *nlsock.NetlinkError to read the raw code).
func FromKernel(err error) error {
	var nerr *nlsock.NetlinkError
	if !errors.As(err, &nerr) {
		return err
	}
	switch nerr.Code {
	case unix.ENOENT:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case unix.EEXIST:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case unix.EBUSY:
		return fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return err
	}
}
