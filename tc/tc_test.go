package tc

import (
	"testing"
	"unsafe"

	"github.com/EsteSystems/netctl/netlink"
)

func TestRatespecOverflowSwitchesToRate64(t *testing.T) {
	r, overflow := ratespec(1_000_000)
	if overflow || r.Rate != 1_000_000 {
		t.Fatalf("low rate flagged overflow: rate=%d overflow=%v", r.Rate, overflow)
	}
	r, overflow = ratespec(1 << 40)
	if !overflow || r.Rate != 0xFFFFFFFF {
		t.Fatalf("high rate not flagged overflow: rate=%#x overflow=%v", r.Rate, overflow)
	}
}

func TestBufferSizeFloorsAtReservedMinimum(t *testing.T) {
	if got := bufferSize(1000); got != 1600 {
		t.Errorf("low rate buffer = %d, want 1600 floor", got)
	}
	if got := bufferSize(100_000); got != 10_000 {
		t.Errorf("buffer = %d, want rate/10 = 10000", got)
	}
}

// TestU32SelPayloadLayout exercises the hand-rolled attribute-length
// fixup used when appending a variable number of U32Key structs after
// the fixed U32Sel header, mirroring what CreateU32Filter does.
func TestU32SelPayloadLayout(t *testing.T) {
	buf := make([]byte, 256)
	b := netlink.NewBuilder(buf)

	matches := []U32Match{
		{Mask: 0xFF000000, Val: 0x0A000000, Off: 12},
		{Mask: 0x0000FFFF, Val: 0x00000050, Off: 20},
	}

	selStart := b.Len()
	sel := &U32Sel{Nkeys: uint8(len(matches))}
	if err := b.AppendAttribute(tcaU32Sel, sel.Serialize()); err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		k := &U32Key{Mask: m.Mask, Val: m.Val, Off: m.Off}
		if err := b.AppendRaw(k.Serialize()); err != nil {
			t.Fatal(err)
		}
	}
	fixupAttrLength(b, selStart)

	attrs, err := netlink.ParseAttributes(b.Bytes()[selStart:])
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 1 {
		t.Fatalf("got %d top-level attrs, want 1", len(attrs))
	}
	payload := attrs[0].Data
	wantLen := SizeofU32Sel + len(matches)*SizeofU32Key
	if len(payload) != wantLen {
		t.Fatalf("payload len = %d, want %d", len(payload), wantLen)
	}

	var gotSel U32Sel
	copy((*(*[SizeofU32Sel]byte)(unsafe.Pointer(&gotSel)))[:], payload[:SizeofU32Sel])
	if gotSel.Nkeys != uint8(len(matches)) {
		t.Errorf("nkeys = %d, want %d", gotSel.Nkeys, len(matches))
	}

	var gotKey U32Key
	keyBytes := payload[SizeofU32Sel : SizeofU32Sel+SizeofU32Key]
	copy((*(*[SizeofU32Key]byte)(unsafe.Pointer(&gotKey)))[:], keyBytes)
	if gotKey.Mask != matches[0].Mask || gotKey.Val != matches[0].Val || gotKey.Off != matches[0].Off {
		t.Errorf("first key round-trip mismatch: got %+v, want %+v", gotKey, matches[0])
	}
}

func TestFilterInfoPacksPriorityAndBigEndianProtocol(t *testing.T) {
	const priority = 10
	const protocol = 0x0800 // ETH_P_IP
	info := uint32(priority)<<16 | uint32(netlink.Htons(protocol))
	if got := uint16(info >> 16); got != priority {
		t.Errorf("priority = %d, want %d", got, priority)
	}
	protoHalf := uint16(info)
	if protoHalf == protocol {
		t.Errorf("protocol half not byte-swapped: %#x", protoHalf)
	}
	if netlink.Ntohs(protoHalf) != protocol {
		t.Errorf("protocol half does not decode back via Ntohs: got %#x", netlink.Ntohs(protoHalf))
	}
}
