package tc

import "testing"

func TestHandleBijection(t *testing.T) {
	for _, major := range []uint16{0, 1, 0x10, 0x7fff, 0xffff} {
		for _, minor := range []uint16{0, 1, 0x10, 0x7fff, 0xffff} {
			h := MakeHandle(major, minor)
			if got := HandleMajor(h); got != major {
				t.Fatalf("major(%d,%d) = %d", major, minor, got)
			}
			if got := HandleMinor(h); got != minor {
				t.Fatalf("minor(%d,%d) = %d", major, minor, got)
			}
		}
	}
}

func TestHandleBijectionExhaustiveSample(t *testing.T) {
	// A full 65536x65536 sweep is needlessly slow for a unit test; sample
	// densely instead; the algebra (shift/mask) makes partial coverage
	// sufficient to catch any off-by-one.
	for major := uint16(0); major < 2000; major++ {
		minor := 65535 - major
		h := MakeHandle(major, minor)
		if HandleMajor(h) != major || HandleMinor(h) != minor {
			t.Fatalf("major=%d minor=%d round-trip failed", major, minor)
		}
	}
}
