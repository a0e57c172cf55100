// Package ipaddr implements the List/Add/Delete operations for interface
// addresses (RTM_*ADDR messages), per spec.md §4.4.
package ipaddr

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/metrics"
	"github.com/EsteSystems/netctl/necode"
	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

// IFA_* attribute types (linux/if_addr.h).
const (
	ifa_ADDRESS   = 1
	ifa_LOCAL     = 2
	ifa_LABEL     = 3
	ifa_BROADCAST = 4
	ifa_FLAGS     = 8
)

// Address is a snapshot view of one RTM_NEWADDR record.
type Address struct {
	Index     int32
	Family    uint8
	IP        net.IP
	Local     net.IP // IFA_LOCAL when present (the peer-side address differs only on point-to-point links); nil otherwise
	Broadcast net.IP
	PrefixLen uint8
	Scope     uint8
	Label     string
	Flags     uint32
}

// Parse decodes one RTM_*ADDR message body into an Address.
func Parse(body []byte) (*Address, error) {
	if len(body) < netlink.SizeofIfAddrmsg {
		return nil, necode.ErrVerificationFailed
	}
	hdr := netlink.DeserializeIfAddrmsg(body)
	addr := &Address{
		Index:     int32(hdr.Index),
		Family:    hdr.Family,
		PrefixLen: hdr.Prefixlen,
		Scope:     hdr.Scope,
	}

	attrs, err := netlink.ParseAttributes(body[netlink.SizeofIfAddrmsg:])
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Type {
		case ifa_ADDRESS:
			addr.IP = append(net.IP(nil), a.Data...)
		case ifa_LOCAL:
			addr.Local = append(net.IP(nil), a.Data...)
		case ifa_BROADCAST:
			addr.Broadcast = append(net.IP(nil), a.Data...)
		case ifa_LABEL:
			addr.Label = a.String()
		case ifa_FLAGS:
			addr.Flags = a.Uint32()
		}
	}
	if addr.IP == nil {
		addr.IP = addr.Local
	}
	return addr, nil
}

// List dumps every address of the given family (AF_INET, AF_INET6, or
// AF_UNSPEC for both).
func List(s *nlsock.Socket, family uint8) ([]*Address, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofIfAddrmsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETADDR, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	ifa := &netlink.IfAddrmsg{Family: family}
	if err := b.AppendRaw(ifa.Serialize()); err != nil {
		return nil, err
	}

	bodies, err := s.Request(b.Finalize(h))
	if err != nil {
		return nil, necode.FromKernel(err)
	}
	out := make([]*Address, 0, len(bodies))
	for _, body := range bodies {
		a, err := Parse(body)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	metrics.DumpSizeHistogram.WithLabelValues("addr").Observe(float64(len(out)))
	return out, nil
}

func addrRequest(s *nlsock.Socket, msgType uint16, flags uint16, index int32, family uint8, ip net.IP, prefixLen uint8) []byte {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(msgType, netlink.Request|netlink.Ack|flags, s.NextSeq(), s.Pid())
	if err != nil {
		return nil
	}
	ifa := &netlink.IfAddrmsg{Family: family, Prefixlen: prefixLen, Index: uint32(index)}
	if err := b.AppendRaw(ifa.Serialize()); err != nil {
		return nil
	}
	if err := b.AppendAttribute(ifa_LOCAL, ip); err != nil {
		return nil
	}
	if err := b.AppendAttribute(ifa_ADDRESS, ip); err != nil {
		return nil
	}
	return b.Finalize(h)
}

// Add assigns ip/prefixLen to the interface at index. family must be
// AF_INET or AF_INET6 and must match ip's length (4 or 16 bytes).
func Add(s *nlsock.Socket, index int32, family uint8, ip net.IP, prefixLen uint8) error {
	msg := addrRequest(s, unix.RTM_NEWADDR, netlink.Create|netlink.Excl, index, family, ip, prefixLen)
	if msg == nil {
		return necode.ErrBufferTooSmall
	}
	_, err := s.Request(msg)
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}

// Delete removes ip/prefixLen from the interface at index.
func Delete(s *nlsock.Socket, index int32, family uint8, ip net.IP, prefixLen uint8) error {
	msg := addrRequest(s, unix.RTM_DELADDR, 0, index, family, ip, prefixLen)
	if msg == nil {
		return necode.ErrBufferTooSmall
	}
	_, err := s.Request(msg)
	if err != nil {
		return necode.FromKernel(err)
	}
	return nil
}
