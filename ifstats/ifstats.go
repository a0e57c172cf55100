// Package ifstats parses per-interface statistics out of link dumps and
// derives rates between successive snapshots, per spec.md's statistics
// section.
package ifstats

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/EsteSystems/netctl/netlink"
	"github.com/EsteSystems/netctl/nlsock"
)

const (
	ifla_STATS   = 7
	ifla_STATS64 = 23
)

const numCounters = 24

// Snapshot holds the 24 counters common to IFLA_STATS64 and IFLA_STATS,
// widened to u64 regardless of source width.
type Snapshot struct {
	Index     int32
	Taken     time.Time
	Truncated bool

	RxPackets         uint64
	TxPackets         uint64
	RxBytes           uint64
	TxBytes           uint64
	RxErrors          uint64
	TxErrors          uint64
	RxDropped         uint64
	TxDropped         uint64
	Multicast         uint64
	Collisions        uint64
	RxLengthErrors    uint64
	RxOverErrors      uint64
	RxCRCErrors       uint64
	RxFrameErrors     uint64
	RxFifoErrors      uint64
	RxMissedErrors    uint64
	TxAbortedErrors   uint64
	TxCarrierErrors   uint64
	TxFifoErrors      uint64
	TxHeartbeatErrors uint64
	TxWindowErrors    uint64
	RxCompressed      uint64
	TxCompressed      uint64
	RxNohandler       uint64
}

// readU64 and readU32 read an unaligned little-endian counter at index i
// (0-based) of a STATS64/STATS attribute payload, widening u32 values to
// u64. A short read (fewer than i+1 counters present) reports truncated
// via the ok return, letting callers treat "absent" and "truncated" as
// the same degenerate case, per spec.md.
func readU64(data []byte, i int) (uint64, bool) {
	off := i * 8
	if off+8 > len(data) {
		return 0, false
	}
	return netlink.Native.Uint64(data[off : off+8]), true
}

func readU32(data []byte, i int) (uint64, bool) {
	off := i * 4
	if off+4 > len(data) {
		return 0, false
	}
	return uint64(netlink.Native.Uint32(data[off : off+4])), true
}

func fill(s *Snapshot, data []byte, read func([]byte, int) (uint64, bool)) {
	fields := []*uint64{
		&s.RxPackets, &s.TxPackets, &s.RxBytes, &s.TxBytes,
		&s.RxErrors, &s.TxErrors, &s.RxDropped, &s.TxDropped,
		&s.Multicast, &s.Collisions, &s.RxLengthErrors, &s.RxOverErrors,
		&s.RxCRCErrors, &s.RxFrameErrors, &s.RxFifoErrors, &s.RxMissedErrors,
		&s.TxAbortedErrors, &s.TxCarrierErrors, &s.TxFifoErrors, &s.TxHeartbeatErrors,
		&s.TxWindowErrors, &s.RxCompressed, &s.TxCompressed, &s.RxNohandler,
	}
	for i, dst := range fields {
		v, ok := read(data, i)
		if !ok {
			s.Truncated = true
			return
		}
		*dst = v
	}
}

// Parse extracts a Snapshot from a link dump record's attribute set,
// preferring STATS64 and falling back to the narrower STATS attribute.
func Parse(index int32, attrs map[uint16]netlink.Attribute, taken time.Time) *Snapshot {
	s := &Snapshot{Index: index, Taken: taken}
	if a, ok := attrs[ifla_STATS64]; ok {
		fill(s, a.Data, readU64)
		return s
	}
	if a, ok := attrs[ifla_STATS]; ok {
		fill(s, a.Data, readU32)
		return s
	}
	s.Truncated = true
	return s
}

// List dumps every interface's link record and returns one Snapshot per
// entry that carries stats attributes.
func List(s *nlsock.Socket) ([]*Snapshot, error) {
	buf := make([]byte, netlink.HeaderLen+netlink.SizeofIfInfomsg)
	b := netlink.NewBuilder(buf)
	h, err := b.StartMessage(unix.RTM_GETLINK, netlink.Request|netlink.Dump, s.NextSeq(), s.Pid())
	if err != nil {
		return nil, err
	}
	ifi := &netlink.IfInfomsg{Family: unix.AF_UNSPEC}
	if err := b.AppendRaw(ifi.Serialize()); err != nil {
		return nil, err
	}
	msgs, err := s.Request(b.Finalize(h))
	if err != nil {
		return nil, err
	}
	taken := time.Now()
	var out []*Snapshot
	for _, msg := range msgs {
		if len(msg) < netlink.SizeofIfInfomsg {
			continue
		}
		ifi := netlink.DeserializeIfInfomsg(msg[:netlink.SizeofIfInfomsg])
		attrs, err := netlink.ParseAttributesMap(msg[netlink.SizeofIfInfomsg:])
		if err != nil {
			continue
		}
		if _, hasStats64 := attrs[ifla_STATS64]; !hasStats64 {
			if _, hasStats := attrs[ifla_STATS]; !hasStats {
				continue
			}
		}
		out = append(out, Parse(ifi.Index, attrs, taken))
	}
	return out, nil
}

// Rate is a set of per-second counter deltas between two snapshots.
type Rate struct {
	Index              int32
	Seconds            float64
	RxPacketsPerSec    float64
	TxPacketsPerSec    float64
	RxBytesPerSec      float64
	TxBytesPerSec      float64
	RxErrorsPerSec     float64
	TxErrorsPerSec     float64
}

// saturatingSub returns b-a, or 0 if the counter appears to have reset
// (b < a), rather than wrapping to a huge value.
func saturatingSub(a, b uint64) uint64 {
	if b < a {
		return 0
	}
	return b - a
}

// DeriveRate computes per-second rates between two snapshots of the same
// interface. A zero or negative elapsed time yields a Rate with all
// fields zero.
func DeriveRate(prev, cur *Snapshot) Rate {
	r := Rate{Index: cur.Index}
	elapsed := cur.Taken.Sub(prev.Taken).Seconds()
	if elapsed <= 0 {
		return r
	}
	r.Seconds = elapsed
	r.RxPacketsPerSec = float64(saturatingSub(prev.RxPackets, cur.RxPackets)) / elapsed
	r.TxPacketsPerSec = float64(saturatingSub(prev.TxPackets, cur.TxPackets)) / elapsed
	r.RxBytesPerSec = float64(saturatingSub(prev.RxBytes, cur.RxBytes)) / elapsed
	r.TxBytesPerSec = float64(saturatingSub(prev.TxBytes, cur.TxBytes)) / elapsed
	r.RxErrorsPerSec = float64(saturatingSub(prev.RxErrors, cur.RxErrors)) / elapsed
	r.TxErrorsPerSec = float64(saturatingSub(prev.TxErrors, cur.TxErrors)) / elapsed
	return r
}
