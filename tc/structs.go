package tc

import "unsafe"

// Ratespec mirrors struct tc_ratespec (linux/pkt_sched.h): cell_log,
// linklayer, overhead, cell_align, mpu, rate (32-bit, bytes/sec; rates
// above 2^32-1 go through the RATE64 attribute instead).
type Ratespec struct {
	CellLog   uint8
	Linklayer uint8
	Overhead  uint16
	CellAlign int16
	MPU       uint16
	Rate      uint32
}

const SizeofRatespec = int(unsafe.Sizeof(Ratespec{}))

func (r *Ratespec) Serialize() []byte {
	return (*(*[SizeofRatespec]byte)(unsafe.Pointer(r)))[:]
}

// TbfQopt mirrors struct tc_tbf_qopt.
type TbfQopt struct {
	Rate     Ratespec
	Peakrate Ratespec
	Limit    uint32
	Buffer   uint32
	Mtu      uint32
}

const SizeofTbfQopt = int(unsafe.Sizeof(TbfQopt{}))

func (o *TbfQopt) Serialize() []byte {
	return (*(*[SizeofTbfQopt]byte)(unsafe.Pointer(o)))[:]
}

// HtbGlob mirrors struct tc_htb_glob, the TCA_HTB_INIT payload.
type HtbGlob struct {
	Version      uint32
	Rate2Quantum uint32
	Defcls       uint32
	Debug        uint32
	DirectPkts   uint32
}

const SizeofHtbGlob = int(unsafe.Sizeof(HtbGlob{}))

func (g *HtbGlob) Serialize() []byte {
	return (*(*[SizeofHtbGlob]byte)(unsafe.Pointer(g)))[:]
}

// HtbOpt mirrors struct tc_htb_opt, the TCA_HTB_PARMS payload.
type HtbOpt struct {
	Rate    Ratespec
	Ceil    Ratespec
	Buffer  uint32
	Cbuffer uint32
	Quantum uint32
	Level   uint32
}

const SizeofHtbOpt = int(unsafe.Sizeof(HtbOpt{}))

func (o *HtbOpt) Serialize() []byte {
	return (*(*[SizeofHtbOpt]byte)(unsafe.Pointer(o)))[:]
}

// U32Sel mirrors the fixed part of struct tc_u32_sel, excluding its
// trailing keys[] array (appended separately as a sequence of U32Key
// structs with no TLV framing between them, per spec.md §4.4).
type U32Sel struct {
	Flags    uint8
	Offshift uint8
	Nkeys    uint8
	pad      uint8
	Offmask  uint16
	Off      uint16
	Offoff   int16
	Hoff     int16
	Hmask    uint32
}

const SizeofU32Sel = int(unsafe.Sizeof(U32Sel{}))

func (s *U32Sel) Serialize() []byte {
	return (*(*[SizeofU32Sel]byte)(unsafe.Pointer(s)))[:]
}

// U32Key mirrors struct tc_u32_key: a 32-bit mask/value match at a byte
// offset into the packet, optionally itself offset by an earlier match
// (Offmask).
type U32Key struct {
	Mask    uint32
	Val     uint32
	Off     int32
	Offmask int32
}

const SizeofU32Key = int(unsafe.Sizeof(U32Key{}))

func (k *U32Key) Serialize() []byte {
	return (*(*[SizeofU32Key]byte)(unsafe.Pointer(k)))[:]
}
