package ifstats

import (
	"testing"
	"time"

	"github.com/EsteSystems/netctl/netlink"
)

func buildStats64(counters [numCounters]uint64) []byte {
	b := make([]byte, numCounters*8)
	for i, c := range counters {
		netlink.Native.PutUint64(b[i*8:i*8+8], c)
	}
	return b
}

func TestParsePrefersStats64(t *testing.T) {
	var counters [numCounters]uint64
	counters[0] = 100 // RxPackets
	counters[2] = 5000 // RxBytes
	attrs := map[uint16]netlink.Attribute{
		ifla_STATS64: {Type: ifla_STATS64, Data: buildStats64(counters)},
	}
	s := Parse(1, attrs, time.Now())
	if s.Truncated {
		t.Fatal("unexpected truncation")
	}
	if s.RxPackets != 100 || s.RxBytes != 5000 {
		t.Errorf("got RxPackets=%d RxBytes=%d", s.RxPackets, s.RxBytes)
	}
}

func TestParseFallsBackToStats32(t *testing.T) {
	b := make([]byte, numCounters*4)
	netlink.Native.PutUint32(b[0:4], 42)
	attrs := map[uint16]netlink.Attribute{
		ifla_STATS: {Type: ifla_STATS, Data: b},
	}
	s := Parse(1, attrs, time.Now())
	if s.Truncated {
		t.Fatal("unexpected truncation")
	}
	if s.RxPackets != 42 {
		t.Errorf("RxPackets = %d, want 42", s.RxPackets)
	}
}

func TestParseNoAttributesIsTruncated(t *testing.T) {
	s := Parse(1, map[uint16]netlink.Attribute{}, time.Now())
	if !s.Truncated {
		t.Fatal("expected Truncated when neither STATS64 nor STATS is present")
	}
}

func TestParseShortStats64IsTruncated(t *testing.T) {
	attrs := map[uint16]netlink.Attribute{
		ifla_STATS64: {Type: ifla_STATS64, Data: buildStats64([numCounters]uint64{})[:40]},
	}
	s := Parse(1, attrs, time.Now())
	if !s.Truncated {
		t.Fatal("expected Truncated for a short STATS64 payload")
	}
}

func TestDeriveRateSaturatesOnCounterReset(t *testing.T) {
	prev := &Snapshot{Index: 1, Taken: time.Unix(0, 0), RxBytes: 1000}
	cur := &Snapshot{Index: 1, Taken: time.Unix(1, 0), RxBytes: 10} // interface reset
	r := DeriveRate(prev, cur)
	if r.RxBytesPerSec != 0 {
		t.Errorf("RxBytesPerSec = %f, want 0 on counter reset", r.RxBytesPerSec)
	}
}

func TestDeriveRateComputesPerSecond(t *testing.T) {
	prev := &Snapshot{Index: 1, Taken: time.Unix(0, 0), RxBytes: 1000}
	cur := &Snapshot{Index: 1, Taken: time.Unix(2, 0), RxBytes: 3000}
	r := DeriveRate(prev, cur)
	if r.RxBytesPerSec != 1000 {
		t.Errorf("RxBytesPerSec = %f, want 1000", r.RxBytesPerSec)
	}
}
