package netlink

import (
	"testing"

	"github.com/go-test/deep"
)

func TestAlign(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 2: 4, 3: 4, 4: 4, 5: 8, 8: 8, 9: 12}
	for n, want := range cases {
		if got := Align(n); got != want {
			t.Errorf("Align(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Len: 64, Type: 16, Flags: Request | Dump, Seq: 7, Pid: 1234}
	b := make([]byte, HeaderLen)
	PutHeader(b, h)
	got, ok := ParseHeader(b)
	if !ok {
		t.Fatal("ParseHeader reported failure on a full-size buffer")
	}
	if diff := deep.Equal(h, got); diff != nil {
		t.Error(diff)
	}
}

func TestParseHeaderShort(t *testing.T) {
	if _, ok := ParseHeader(make([]byte, 4)); ok {
		t.Error("expected ParseHeader to fail on a short buffer")
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	b := NewBuilder(buf)
	h, err := b.StartMessage(16, Request, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint32Attr(3, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendStringAttr(4, "eth0"); err != nil {
		t.Fatal(err)
	}
	msg := b.Finalize(h)

	hdr, ok := ParseHeader(msg)
	if !ok {
		t.Fatal("failed to parse header back")
	}
	if int(hdr.Len) != len(msg) {
		t.Errorf("header length %d != actual message length %d", hdr.Len, len(msg))
	}

	attrs, err := ParseAttributes(msg[HeaderLen:])
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes, want 2", len(attrs))
	}
	if attrs[0].Type != 3 || attrs[0].Uint32() != 0xdeadbeef {
		t.Errorf("attr 0 = %+v", attrs[0])
	}
	if attrs[1].Type != 4 || attrs[1].String() != "eth0" {
		t.Errorf("attr 1 = %+v", attrs[1])
	}
}

func TestNestedAttributeRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	b := NewBuilder(buf)
	h, err := b.StartMessage(16, Request, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	start, err := b.BeginNested(18) // e.g. IFLA_LINKINFO
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendStringAttr(1, "vlan"); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint16Attr(2, 100); err != nil {
		t.Fatal(err)
	}
	if err := b.EndNested(start); err != nil {
		t.Fatal(err)
	}
	msg := b.Finalize(h)

	attrs, err := ParseAttributes(msg[HeaderLen:])
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 1 || attrs[0].Type != 18 {
		t.Fatalf("got %+v, want one attribute of type 18", attrs)
	}
	children, err := attrs[0].Nested()
	if err != nil {
		t.Fatal(err)
	}
	var kids []Attribute
	for {
		a, ok, err := children.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		kids = append(kids, a)
	}
	if len(kids) != 2 {
		t.Fatalf("got %d nested attributes, want 2", len(kids))
	}
	if kids[0].String() != "vlan" || kids[1].Uint16() != 100 {
		t.Errorf("nested children = %+v", kids)
	}
	wantLen := AttrHeaderLen + Align(AttrHeaderLen+5) + Align(AttrHeaderLen+2)
	gotLen := int(Native.Uint16(msg[HeaderLen : HeaderLen+2]))
	if gotLen != wantLen {
		t.Errorf("nested attribute length = %d, want %d", gotLen, wantLen)
	}
}

func TestAppendOverflowsBuffer(t *testing.T) {
	buf := make([]byte, HeaderLen+2)
	b := NewBuilder(buf)
	h, err := b.StartMessage(16, Request, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint32Attr(1, 5); err != ErrBufferTooSmall {
		t.Errorf("got %v, want ErrBufferTooSmall", err)
	}
	_ = h
}

func TestParseAttributesStopsCleanlyOnMalformedTLV(t *testing.T) {
	buf := make([]byte, 512)
	b := NewBuilder(buf)
	h, _ := b.StartMessage(16, Request, 1, 0)
	b.AppendUint32Attr(1, 1)
	b.AppendUint32Attr(2, 2)
	msg := b.Finalize(h)
	body := msg[HeaderLen:]

	// Corrupt the second attribute's length field to exceed the buffer.
	Native.PutUint16(body[Align(AttrHeaderLen+4):Align(AttrHeaderLen+4)+2], 0xFFFF)

	attrs, err := ParseAttributes(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 1 {
		t.Fatalf("got %d attributes, want exactly the one parsed before the corruption", len(attrs))
	}
}

func TestParseErrorAck(t *testing.T) {
	data := make([]byte, 4+HeaderLen)
	orig := Header{Len: HeaderLen, Type: 16, Flags: Request, Seq: 9, Pid: 100}
	PutHeader(data[4:], orig)
	errno, got, ok := ParseError(data)
	if !ok || errno != 0 {
		t.Fatalf("errno=%d ok=%v, want 0/true", errno, ok)
	}
	if diff := deep.Equal(orig, got); diff != nil {
		t.Error(diff)
	}
}

func TestHtonsRoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x1234, 0xFFFF} {
		if got := Ntohs(Htons(v)); got != v {
			t.Errorf("Ntohs(Htons(%#x)) = %#x", v, got)
		}
	}
}

func TestSizeofFamilyStructs(t *testing.T) {
	cases := map[string]struct {
		got, want int
	}{
		"IfInfomsg":  {SizeofIfInfomsg, 16},
		"IfAddrmsg":  {SizeofIfAddrmsg, 8},
		"Rtmsg":      {SizeofRtmsg, 12},
		"Ndmsg":      {SizeofNdmsg, 12},
		"FibRuleHdr": {SizeofFibRuleHdr, 12},
		"TcMsg":      {SizeofTcMsg, 20},
		"RtNexthop":  {SizeofRtNexthop, 8},
	}
	for name, c := range cases {
		if c.got != c.want {
			t.Errorf("sizeof %s = %d, want %d", name, c.got, c.want)
		}
	}
}
