// Package nlsock owns the one blocking datagram socket a caller speaks
// the kernel routing-control protocol over: sequence numbering, the
// request/dump loop, and ACK/error translation. It knows nothing about
// attribute semantics; see package netlink for the wire format and the
// per-family packages (link, ipaddr, route, ...) for what to put inside a
// request.
package nlsock

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/netlink"
)

// NetlinkError wraps a nonzero error code the kernel returned in an
// NLMSG_ERROR reply. Code is the OS error number, negated back to its
// positive syscall.Errno form.
type NetlinkError struct {
	Code unix.Errno
}

func (e *NetlinkError) Error() string {
	return fmt.Sprintf("netlink: kernel returned error %d (%s)", int(e.Code), e.Code.Error())
}

// Sentinel errors for the setup/IO failure taxonomy (spec.md §7). These
// are terminal: retrying the same operation will not help.
var (
	ErrSocketCreationFailed = errors.New("nlsock: socket creation failed")
	ErrBindFailed           = errors.New("nlsock: bind failed")
	ErrSendFailed            = errors.New("nlsock: send failed")
	ErrReceiveFailed         = errors.New("nlsock: receive failed")
)

// recvBufferStart is the initial size of the receive buffer; it doubles
// until a single recvfrom call's worth of data fits, the same
// peek-and-grow idiom sketched in the teacher's experimental code.
const recvBufferStart = 16 * 1024

// Socket owns one AF_NETLINK/NETLINK_ROUTE datagram socket. It is not
// safe for concurrent use: a request holds the socket until it
// terminates, by design (spec.md §4.2's "does not interleave requests on
// a socket").
type Socket struct {
	fd  int
	pid uint32
	seq uint32
}

// Open creates and binds a new routing-control socket: close-on-exec,
// bound to a kernel-assigned pid with an empty multicast group mask. Use
// package nlmonitor for multicast subscriptions.
func Open() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketCreationFailed, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0, Groups: 0}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	nlsa, ok := sa.(*unix.SockaddrNetlink)
	if !ok {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: unexpected sockaddr type", ErrBindFailed)
	}
	return &Socket{fd: fd, pid: nlsa.Pid, seq: 0}, nil
}

// Close releases the socket. Safe to call more than once.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// Pid is the kernel-assigned port id this socket is bound to.
func (s *Socket) Pid() uint32 { return s.pid }

// NextSeq returns the next sequence number for a request on this socket,
// starting at 1 and wrapping per spec.md's monotonicity law.
func (s *Socket) NextSeq() uint32 {
	return atomic.AddUint32(&s.seq, 1)
}

// Request sends msg once and then reads datagrams until the response
// stream terminates, per spec.md §4.2:
//   - NLMSG_DONE terminates a dump; every payload-bearing message seen
//     before it is returned.
//   - NLMSG_ERROR with code 0 terminates a non-dump request successfully.
//   - NLMSG_ERROR with nonzero code fails the operation with NetlinkError.
//   - short reads and EINTR are retried; any other I/O error is terminal.
//
// Each returned []byte is one response message's payload with the
// 16-byte header stripped (the family struct followed by its attributes);
// callers pass these to the relevant family package's parser.
func (s *Socket) Request(msg []byte) ([][]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RequestLatency.Observe(time.Since(start).Seconds())
	}()

	if err := s.send(msg); err != nil {
		return nil, err
	}

	var out [][]byte
	buf := make([]byte, recvBufferStart)
	for {
		n, err := s.recv(&buf)
		if err != nil {
			return out, err
		}
		done, result, rerr := consumeMessages(buf[:n], out)
		out = result
		if rerr != nil {
			return out, rerr
		}
		if done {
			return out, nil
		}
	}
}

// consumeMessages walks every concatenated netlink message in data,
// appending payload-bearing ones to out, and reports whether the
// response stream has terminated.
func consumeMessages(data []byte, out [][]byte) (done bool, result [][]byte, err error) {
	for len(data) >= netlink.HeaderLen {
		hdr, ok := netlink.ParseHeader(data)
		if !ok {
			break
		}
		adv := netlink.Align(int(hdr.Len))
		if int(hdr.Len) < netlink.HeaderLen || adv > len(data) {
			// Malformed message; stop consuming this datagram, but keep
			// what was already parsed.
			return true, out, nil
		}
		body := data[netlink.HeaderLen:hdr.Len]

		switch hdr.Type {
		case netlink.Done:
			return true, out, nil
		case netlink.ErrorMsg:
			errno, _, ok := netlink.ParseError(body)
			if !ok {
				return true, out, nil
			}
			if errno == 0 {
				return true, out, nil
			}
			return true, out, &NetlinkError{Code: unix.Errno(-errno)}
		default:
			out = append(out, body)
		}
		data = data[adv:]
	}
	return false, out, nil
}

func (s *Socket) send(msg []byte) error {
	for {
		err := unix.Sendto(s.fd, msg, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return nil
	}
}

// recv reads one datagram into *buf, growing *buf (doubling) if it was
// too small to hold the whole thing, and retrying on EINTR.
func (s *Socket) recv(buf *[]byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(s.fd, *buf, unix.MSG_PEEK)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
		}
		if n == len(*buf) {
			// May have been truncated; grow and re-peek.
			*buf = make([]byte, len(*buf)*2)
			continue
		}
		n, _, err = unix.Recvfrom(s.fd, *buf, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
		}
		return n, nil
	}
}
