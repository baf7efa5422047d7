package navmsg

// parityMasks select D29*, D30* and d1..d24 (bits 31..6) plus the parity
// bit itself for each of D25..D30, laid out over the 32-bit word
// D29* D30* d1..d24 D25..D30.
var parityMasks = [6]uint32{
	0xBB1F34A0, 0x5D8F9A50, 0xAEC7CD08,
	0x5763E684, 0x6BB1F342, 0x8B7A89C1,
}

// checkMasks are parityMasks without the parity bit itself.
var checkMasks = [6]uint32{
	0xBB1F3480, 0x5D8F9A40, 0xAEC7CD00,
	0x5763E680, 0x6BB1F340, 0x8B7A89C0,
}

// parity32 returns the XOR of all bits of x.
func parity32(x uint32) uint32 {
	x ^= x >> 16
	x ^= x >> 8
	x ^= x >> 4
	x &= 0xF
	return (0x6996 >> x) & 1
}

// AddParity returns the 30-bit transmitted word for 24 data bits d given
// the last two bits of the previous word. When d30 is set the data bits
// are sent inverted.
func AddParity(d uint32, d29, d30 bool) uint32 {
	x := (d & 0xFFFFFF) << 6
	if d30 {
		x |= 1 << 30
	}
	if d29 {
		x |= 1 << 31
	}

	for n, mask := range parityMasks {
		x |= parity32(x&mask) << (5 - n)
	}

	if d30 {
		x ^= 0x3FFFFFC0
	}
	return x & 0x3FFFFFFF
}

// CheckParity verifies a received word laid out as D29* D30* D1..D30
// (32 bits, previous word's last two bits first). It returns the 24 data
// bits with the D30* inversion undone.
func CheckParity(word uint32) (uint32, bool) {
	if word&0x40000000 != 0 {
		word ^= 0x3FFFFFC0
	}

	var parity uint32
	for _, mask := range checkMasks {
		parity = parity<<1 | parity32(word&mask)
	}
	if parity != word&0x3F {
		return 0, false
	}
	return (word >> 6) & 0xFFFFFF, true
}

// contrive adjusts the two least significant data bits of d so that the
// parity bits D29 and D30 come out zero, leaving the next word free of
// inversion. The upper 22 bits are kept.
func contrive(d uint32, d29, d30 bool) (uint32, bool) {
	base := d &^ 0x3
	for t := uint32(0); t < 4; t++ {
		if AddParity(base|t, d29, d30)&0x3 == 0 {
			return base | t, true
		}
	}
	return d, false
}
