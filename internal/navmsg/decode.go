package navmsg

import (
	"fmt"
	"math"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
)

// Subframe is a parity-checked subframe. Data holds the 24 data bits of
// each word, TLM first.
type Subframe struct {
	ID   int
	TOW  int // truncated TOW count from the HOW (units of 6 s)
	Data [WordsPerSubframe]uint32
}

// SplitWords packs a bit stream into 30-bit words.
func SplitWords(bits Bits) ([]uint32, error) {
	if len(bits)%WordBits != 0 {
		return nil, fmt.Errorf("bit stream length %d is not a multiple of %d", len(bits), WordBits)
	}
	words := make([]uint32, 0, len(bits)/WordBits)
	for i := 0; i < len(bits); i += WordBits {
		var w uint32
		for _, b := range bits[i : i+WordBits] {
			w <<= 1
			if b > 0 {
				w |= 1
			}
		}
		words = append(words, w)
	}
	return words, nil
}

// Decode splits a bit stream into subframes and checks every word's
// parity. The stream must start on a subframe boundary.
func Decode(bits Bits) ([]Subframe, error) {
	if len(bits)%SubframeBits != 0 {
		return nil, fmt.Errorf("bit stream length %d is not a multiple of %d", len(bits), SubframeBits)
	}
	words, err := SplitWords(bits)
	if err != nil {
		return nil, err
	}

	subframes := make([]Subframe, 0, len(words)/WordsPerSubframe)
	var prev uint32
	for i := 0; i < len(words); i += WordsPerSubframe {
		var sf Subframe
		for j := 0; j < WordsPerSubframe; j++ {
			w := words[i+j]
			data, ok := CheckParity((prev&0x3)<<30 | w)
			if !ok {
				return nil, fmt.Errorf("subframe %d word %d (%#08x): %w", i/WordsPerSubframe, j+1, w, ErrParity)
			}
			sf.Data[j] = data
			prev = w
		}
		if sf.Data[0]>>16 != tlmWord>>16 {
			return nil, fmt.Errorf("subframe %d: bad preamble %#x", i/WordsPerSubframe, sf.Data[0]>>16)
		}
		sf.TOW = int(sf.Data[1] >> 7)
		sf.ID = int(sf.Data[1]>>2) & 0x7
		subframes = append(subframes, sf)
	}
	return subframes, nil
}

// signed interprets the low n bits of v as two's complement.
func signed(v uint32, n int) float64 {
	shift := 32 - n
	return float64(int32(v<<shift) >> shift)
}

// DecodeEphemeris rebuilds the broadcast ephemeris from the first
// subframes 1, 2 and 3 found in sfs.
func DecodeEphemeris(sfs []Subframe) (*ephemeris.Ephemeris, error) {
	var byID [4]*Subframe
	for i := range sfs {
		if id := sfs[i].ID; id >= 1 && id <= 3 && byID[id] == nil {
			byID[id] = &sfs[i]
		}
	}
	for id := 1; id <= 3; id++ {
		if byID[id] == nil {
			return nil, fmt.Errorf("subframe %d not found", id)
		}
	}
	w1, w2, w3 := byID[1].Data, byID[2].Data, byID[3].Data

	eph := &ephemeris.Ephemeris{Valid: true}

	// Subframe 1: clock.
	eph.TOC.Week = int(w1[2] >> 14)
	eph.L2Codes = int(w1[2]>>12) & 0x3
	eph.SVAccuracy = uraNominal(int(w1[2]>>8) & 0xF)
	eph.Health = int(w1[2]>>2) & 0x3F
	eph.L2PFlag = int(w1[3] >> 23)
	eph.TGD = math.Ldexp(signed(w1[6], 8), -31)
	eph.IODC = int(w1[2]&0x3)<<8 | int(w1[7]>>16)
	eph.TOC.TOW = float64(w1[7]&0xFFFF) * 16
	eph.Af2 = math.Ldexp(signed(w1[8]>>16, 8), -55)
	eph.Af1 = math.Ldexp(signed(w1[8], 16), -43)
	eph.Af0 = math.Ldexp(signed(w1[9]>>2, 22), -31)

	// Subframe 2: orbit, part one.
	eph.IODE = int(w2[2] >> 16)
	eph.Crs = math.Ldexp(signed(w2[2], 16), -5)
	eph.DeltaN = math.Ldexp(signed(w2[3]>>8, 16), -43) * gps.Pi
	eph.M0 = math.Ldexp(signed(w2[3]<<24|w2[4], 32), -31) * gps.Pi
	eph.Cuc = math.Ldexp(signed(w2[5]>>8, 16), -29)
	eph.Ecc = math.Ldexp(float64(w2[5]<<24|w2[6]), -33)
	eph.Cus = math.Ldexp(signed(w2[7]>>8, 16), -29)
	eph.SqrtA = math.Ldexp(float64(w2[7]<<24|w2[8]), -19)
	eph.TOE.TOW = float64(w2[9]>>8) * 16
	eph.TOE.Week = eph.TOC.Week

	// Subframe 3: orbit, part two.
	eph.Cic = math.Ldexp(signed(w3[2]>>8, 16), -29)
	eph.Omega0 = math.Ldexp(signed(w3[2]<<24|w3[3], 32), -31) * gps.Pi
	eph.Cis = math.Ldexp(signed(w3[4]>>8, 16), -29)
	eph.Inc = math.Ldexp(signed(w3[4]<<24|w3[5], 32), -31) * gps.Pi
	eph.Crc = math.Ldexp(signed(w3[6]>>8, 16), -5)
	eph.W = math.Ldexp(signed(w3[6]<<24|w3[7], 32), -31) * gps.Pi
	eph.OmegaDot = math.Ldexp(signed(w3[8], 24), -43) * gps.Pi
	eph.IncDot = math.Ldexp(signed(w3[9]>>2, 14), -43) * gps.Pi

	if iode3 := int(w3[9] >> 16); iode3 != eph.IODE {
		return nil, fmt.Errorf("iode mismatch: subframe 2 %d, subframe 3 %d", eph.IODE, iode3)
	}
	return eph, nil
}

// uraNominal returns the lower accuracy bound for a URA index.
func uraNominal(i int) float64 {
	return uraThresholds[i]
}
