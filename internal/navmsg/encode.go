// Package navmsg encodes and decodes the GPS L1 C/A LNAV navigation
// message: 300-bit subframes of ten 30-bit words with Hamming parity.
package navmsg

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
)

const (
	// WordBits is the length of a navigation word.
	WordBits = 30
	// WordsPerSubframe is the number of words in a subframe.
	WordsPerSubframe = 10
	// SubframeBits is the length of a subframe.
	SubframeBits = WordBits * WordsPerSubframe
	// SubframeSeconds is the transmission time of one subframe.
	SubframeSeconds = 6
	// DefaultSubframes covers 25 full frames (one 12.5 minute superframe).
	DefaultSubframes = 5 * 25

	// tlmWord is the telemetry word: preamble 0x8B followed by a zero TLM message.
	tlmWord = 0b100010110000110011011000

	// howTOWModulus wraps the 17-bit truncated TOW count at the end of the week.
	howTOWModulus = 100800
)

var (
	// ErrParityContrivance is returned when no choice of the two spare bits
	// zeroes D29 and D30.
	ErrParityContrivance = errors.New("parity contrivance failed")

	// ErrParity is returned by Decode for words that fail the parity check.
	ErrParity = errors.New("parity check failed")
)

// Bits is a navigation bit stream as +1 (logical one) / -1 symbols.
type Bits []int8

// Subframes 4 and 5 are fixed words captured from the air (PRN01,
// 2015-05-25 00:00:00), 30 bits each including parity.
var (
	capturedSubframe4 = [8]uint32{
		511488068, 945940202, 386273405, 48194904,
		631618940, 612991087, 1051748003, 777803572,
	}
	capturedSubframe5 = [8]uint32{
		293620849, 834459796, 1062420482, 675506260,
		742955800, 606233551, 115587165, 981462416,
	}
)

// uraThresholds are the lower bounds of each URA index in metres.
var uraThresholds = []float64{
	0, 2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24, 48, 96, 192,
	384, 768, 1536, 3072, 6144,
}

// enc scales v by 2^-scale, rounds half to even and keeps the low bits
// (two's complement for negative values).
func enc(v float64, scale, bits int) uint32 {
	return uint32(int64(math.RoundToEven(math.Ldexp(v, -scale))) & (int64(1)<<bits - 1))
}

// uraIndex maps an SV accuracy in metres to its 4-bit URA index.
func uraIndex(accuracy float64) uint32 {
	i := sort.SearchFloat64s(uraThresholds, math.Trunc(accuracy)) - 1
	if i < 0 {
		i = 0
	}
	if i > 15 {
		i = 15
	}
	return uint32(i)
}

func subframe1(eph *ephemeris.Ephemeris) [8]uint32 {
	iodc := uint32(eph.IODC)
	return [8]uint32{
		uint32(eph.TOC.Week%1024)<<14 |
			uint32(eph.L2Codes&0x3)<<12 |
			uraIndex(eph.SVAccuracy)<<8 |
			uint32(eph.Health&0x3F)<<2 |
			(iodc>>8)&0x3,
		uint32(eph.L2PFlag&1)<<23 | 0b00101001011010110101101,
		0b001111100110010101111110,
		0b001111000100110110010000,
		0b0100011011111100<<8 | enc(eph.TGD, -31, 8),
		(iodc&0xFF)<<16 | uint32(eph.TOC.TOW/16)&0xFFFF,
		enc(eph.Af2, -55, 8)<<16 | enc(eph.Af1, -43, 16),
		enc(eph.Af0, -31, 22) << 2,
	}
}

func subframe2(eph *ephemeris.Ephemeris) [8]uint32 {
	m0 := enc(eph.M0/gps.Pi, -31, 32)
	e := enc(eph.Ecc, -33, 32)
	sqrta := enc(eph.SqrtA, -19, 32)
	return [8]uint32{
		uint32(eph.IODE&0xFF)<<16 | enc(eph.Crs, -5, 16),
		enc(eph.DeltaN/gps.Pi, -43, 16)<<8 | m0>>24,
		m0 & 0xFFFFFF,
		enc(eph.Cuc, -29, 16)<<8 | e>>24,
		e & 0xFFFFFF,
		enc(eph.Cus, -29, 16)<<8 | sqrta>>24,
		sqrta & 0xFFFFFF,
		// Fit interval flag 0, AODO 0b11111.
		(uint32(eph.TOE.TOW/16)&0xFFFF)<<8 | 0b01111100,
	}
}

func subframe3(eph *ephemeris.Ephemeris) [8]uint32 {
	omega0 := enc(eph.Omega0/gps.Pi, -31, 32)
	inc := enc(eph.Inc/gps.Pi, -31, 32)
	w := enc(eph.W/gps.Pi, -31, 32)
	return [8]uint32{
		enc(eph.Cic, -29, 16)<<8 | omega0>>24,
		omega0 & 0xFFFFFF,
		enc(eph.Cis, -29, 16)<<8 | inc>>24,
		inc & 0xFFFFFF,
		enc(eph.Crc, -5, 16)<<8 | w>>24,
		w & 0xFFFFFF,
		enc(eph.OmegaDot/gps.Pi, -43, 24),
		uint32(eph.IODE&0xFF)<<16 | enc(eph.IncDot/gps.Pi, -43, 14)<<2,
	}
}

// captured recovers the data bits of words received from the air by
// undoing the D30* inversion of each word.
func captured(words [8]uint32) [8]uint32 {
	var out [8]uint32
	var d30 uint32
	for i, rx := range words {
		out[i] = (rx >> 6) ^ (0xFFFFFF * d30)
		d30 = rx & 1
	}
	return out
}

// subframeData returns data words 3..10 for subframe id 1..5.
func subframeData(id int, eph *ephemeris.Ephemeris) [8]uint32 {
	switch id {
	case 1:
		return subframe1(eph)
	case 2:
		return subframe2(eph)
	case 3:
		return subframe3(eph)
	case 4:
		return captured(capturedSubframe4)
	default:
		return captured(capturedSubframe5)
	}
}

// Words returns the 30-bit transmitted words of nSubframes consecutive
// subframes starting at tow0 (seconds of week, a multiple of 6).
func Words(eph *ephemeris.Ephemeris, tow0, nSubframes int) ([]uint32, error) {
	if eph == nil {
		return nil, fmt.Errorf("nil ephemeris")
	}
	if tow0 < 0 || tow0%SubframeSeconds != 0 {
		return nil, fmt.Errorf("tow0 %d is not a non-negative multiple of %d s", tow0, SubframeSeconds)
	}
	if nSubframes < 0 {
		return nil, fmt.Errorf("negative subframe count %d", nSubframes)
	}

	out := make([]uint32, 0, nSubframes*WordsPerSubframe)
	for ix := 0; ix < nSubframes; ix++ {
		id := ix%5 + 1
		// HOW carries the TOW count at the start of the next subframe.
		truncTOW := uint32((tow0/SubframeSeconds + ix + 1) % howTOWModulus)
		how := truncTOW<<7 | 0b01<<5 | uint32(id)<<2

		words := make([]uint32, 0, WordsPerSubframe)
		words = append(words, tlmWord, how)
		data := subframeData(id, eph)
		words = append(words, data[:]...)

		// The previous subframe's last word is contrived to end in 00.
		var d29, d30 bool
		for wi, w := range words {
			if wi == 1 || wi == 9 {
				var ok bool
				w, ok = contrive(w, d29, d30)
				if !ok {
					return nil, fmt.Errorf("prn %d subframe %d word %d: %w", eph.PRN+1, ix, wi+1, ErrParityContrivance)
				}
			}
			wp := AddParity(w, d29, d30)
			out = append(out, wp)
			d29 = wp&0x2 != 0
			d30 = wp&0x1 != 0
		}
	}
	return out, nil
}

// Encode returns the navigation bit stream for nSubframes subframes
// starting at tow0, MSB first.
func Encode(eph *ephemeris.Ephemeris, tow0, nSubframes int) (Bits, error) {
	words, err := Words(eph, tow0, nSubframes)
	if err != nil {
		return nil, err
	}

	bits := make(Bits, 0, len(words)*WordBits)
	for _, w := range words {
		for b := WordBits - 1; b >= 0; b-- {
			bits = append(bits, int8((w>>b)&1)*2-1)
		}
	}
	return bits, nil
}
