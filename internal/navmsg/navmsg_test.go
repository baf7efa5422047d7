package navmsg

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
)

func testEphemeris() *ephemeris.Ephemeris {
	return &ephemeris.Ephemeris{
		TOC:        ephemeris.Time{Week: 1846, TOW: 93600},
		TOE:        ephemeris.Time{Week: 1846, TOW: 93600},
		L2Codes:    1,
		SVAccuracy: 2.0,
		IODC:       0x2A,
		IODE:       0x2A,
		TGD:        5.122274160385e-09,
		Af0:        1.227259635925e-05,
		Af1:        -1.250555214938e-12,
		M0:         1.219012334681,
		DeltaN:     4.538760766371e-09,
		Ecc:        4.522286471911e-03,
		SqrtA:      5153.654832840,
		Cuc:        1.177191734314e-06,
		Cus:        8.186325430870e-06,
		Crc:        209.09375,
		Crs:        21.34375,
		Cic:        1.117587089539e-08,
		Cis:        -5.587935447693e-08,
		Omega0:     -1.979812468421,
		OmegaDot:   -8.014619457557e-09,
		Inc:        0.961750931327,
		IncDot:     1.035757144035e-10,
		W:          0.553422349370,
		Valid:      true,
	}
}

func TestParityRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		d := rng.Uint32() & 0xFFFFFF
		d29 := rng.Intn(2) == 1
		d30 := rng.Intn(2) == 1

		w := AddParity(d, d29, d30)
		require.Zero(t, w&^0x3FFFFFFF, "word exceeds 30 bits")

		var prev uint32
		if d29 {
			prev |= 0x2
		}
		if d30 {
			prev |= 0x1
		}
		data, ok := CheckParity(prev<<30 | w)
		require.True(t, ok, "parity check failed for d=%#x d29=%v d30=%v", d, d29, d30)
		require.Equal(t, d, data)

		// Recomputing parity from the recovered data matches the transmitted bits.
		require.Equal(t, w&0x3F, AddParity(data, d29, d30)&0x3F)
	}
}

func TestParityDetectsSingleBitErrors(t *testing.T) {
	w := AddParity(0xABCDEF, false, true)
	full := uint32(0x1)<<30 | w
	_, ok := CheckParity(full)
	require.True(t, ok)

	for bit := 0; bit < 30; bit++ {
		_, ok := CheckParity(full ^ 1<<bit)
		assert.False(t, ok, "flipped bit %d not detected", bit)
	}
}

func TestEnc(t *testing.T) {
	tests := []struct {
		v     float64
		scale int
		bits  int
		want  uint32
	}{
		{-1, 0, 8, 0xFF},
		{2.5, 0, 8, 2},
		{3.5, 0, 8, 4},
		{-0.5, 0, 4, 0},
		{-2.5, 0, 4, 0xE},
		{1.0, -31, 32, 0x80000000},
		{-1.0, -31, 32, 0x80000000},
		{0.25, -2, 8, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, enc(tt.v, tt.scale, tt.bits), "enc(%v, %d, %d)", tt.v, tt.scale, tt.bits)
	}
}

func TestURAIndex(t *testing.T) {
	tests := []struct {
		acc  float64
		want uint32
	}{
		{0, 0},
		{2.0, 0},
		{2.9, 0},
		{3.0, 1},
		{5.0, 3},
		{24, 6},
		{6144, 14},
		{10000, 15},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, uraIndex(tt.acc), "uraIndex(%v)", tt.acc)
	}
}

func TestWordsGolden(t *testing.T) {
	words, err := Words(testEphemeris(), 86400, 3)
	require.NoError(t, err)
	require.Len(t, words, 30)

	want := []uint32{
		0x22C3363F, 0x38F7D608, 0x33640034, 0x052D6B64, 0x0F995FB8, 0x0F13641B, 0x2E40FD28, 0x0A85B69C, 0x003FFD46, 0x0066F3C8,
		0x22C3363F, 0x38F7B598, 0x0A80AACE, 0x0C690C6D, 0x154F5E41, 0x3F61FF7E, 0x142FB054, 0x044AE860, 0x034F4678, 0x05B69FB0,
		0x22C3363F, 0x38F79410, 0x0001ABF5, 0x2A8C5BF6, 0x3FF889F1, 0x3424BADA, 0x0688C5A2, 0x2319E34E, 0x3FEA161C, 0x0A812200,
	}
	for i := range want {
		assert.Equal(t, want[i], words[i], "word %d: got %#08x want %#08x", i, words[i], want[i])
	}
}

func TestEncodeStructure(t *testing.T) {
	const tow0 = 86400
	bits, err := Encode(testEphemeris(), tow0, DefaultSubframes)
	require.NoError(t, err)
	require.Len(t, bits, DefaultSubframes*SubframeBits)

	for i, b := range bits {
		if b != 1 && b != -1 {
			t.Fatalf("bit %d = %d, want +/-1", i, b)
		}
	}

	words, err := SplitWords(bits)
	require.NoError(t, err)
	for i := 1; i < len(words); i += WordsPerSubframe {
		assert.Zero(t, words[i]&0x3, "HOW of subframe %d does not end in 00", i/WordsPerSubframe)
		assert.Zero(t, words[i+8]&0x3, "word 10 of subframe %d does not end in 00", i/WordsPerSubframe)
	}

	sfs, err := Decode(bits)
	require.NoError(t, err)
	require.Len(t, sfs, DefaultSubframes)
	for ix, sf := range sfs {
		assert.Equal(t, ix%5+1, sf.ID, "subframe %d id", ix)
		assert.Equal(t, tow0/6+ix+1, sf.TOW, "subframe %d tow", ix)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := Encode(testEphemeris(), 86400, 10)
	require.NoError(t, err)
	b, err := Encode(testEphemeris(), 86400, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCapturedSubframesReemitted(t *testing.T) {
	words, err := Words(testEphemeris(), 0, 5)
	require.NoError(t, err)

	got4 := words[3*WordsPerSubframe+2 : 4*WordsPerSubframe]
	got5 := words[4*WordsPerSubframe+2 : 5*WordsPerSubframe]
	assert.Equal(t, capturedSubframe4[:], got4)
	assert.Equal(t, capturedSubframe5[:], got5)
}

func TestDecodeEphemerisRoundTrip(t *testing.T) {
	eph := testEphemeris()
	bits, err := Encode(eph, 86400, 5)
	require.NoError(t, err)
	sfs, err := Decode(bits)
	require.NoError(t, err)

	got, err := DecodeEphemeris(sfs)
	require.NoError(t, err)

	lsb := func(scale int) float64 { return math.Ldexp(1, scale) }
	assert.Equal(t, 1846%1024, got.TOC.Week)
	assert.Equal(t, eph.L2Codes, got.L2Codes)
	assert.Equal(t, eph.IODC, got.IODC)
	assert.Equal(t, eph.IODE, got.IODE)
	assert.Equal(t, eph.TOC.TOW, got.TOC.TOW)
	assert.Equal(t, eph.TOE.TOW, got.TOE.TOW)
	assert.InDelta(t, eph.TGD, got.TGD, lsb(-31)/2)
	assert.InDelta(t, eph.Af0, got.Af0, lsb(-31)/2)
	assert.InDelta(t, eph.Af1, got.Af1, lsb(-43)/2)
	assert.InDelta(t, eph.Af2, got.Af2, lsb(-55)/2)
	assert.InDelta(t, eph.Crs, got.Crs, lsb(-5)/2)
	assert.InDelta(t, eph.Crc, got.Crc, lsb(-5)/2)
	assert.InDelta(t, eph.Cuc, got.Cuc, lsb(-29)/2)
	assert.InDelta(t, eph.Cus, got.Cus, lsb(-29)/2)
	assert.InDelta(t, eph.Cic, got.Cic, lsb(-29)/2)
	assert.InDelta(t, eph.Cis, got.Cis, lsb(-29)/2)
	assert.InDelta(t, eph.Ecc, got.Ecc, lsb(-33)/2)
	assert.InDelta(t, eph.SqrtA, got.SqrtA, lsb(-19)/2)
	assert.InDelta(t, eph.M0, got.M0, lsb(-31)*gps.Pi/2)
	assert.InDelta(t, eph.Omega0, got.Omega0, lsb(-31)*gps.Pi/2)
	assert.InDelta(t, eph.Inc, got.Inc, lsb(-31)*gps.Pi/2)
	assert.InDelta(t, eph.W, got.W, lsb(-31)*gps.Pi/2)
	assert.InDelta(t, eph.DeltaN, got.DeltaN, lsb(-43)*gps.Pi/2)
	assert.InDelta(t, eph.OmegaDot, got.OmegaDot, lsb(-43)*gps.Pi/2)
	assert.InDelta(t, eph.IncDot, got.IncDot, lsb(-43)*gps.Pi/2)
}

func TestHOWTOWWrapsAtWeekEnd(t *testing.T) {
	// 604794 s is the last subframe of the week; the next subframe starts at TOW 0.
	bits, err := Encode(testEphemeris(), 604794, 2)
	require.NoError(t, err)
	sfs, err := Decode(bits)
	require.NoError(t, err)
	assert.Equal(t, 0, sfs[0].TOW)
	assert.Equal(t, 1, sfs[1].TOW)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(testEphemeris(), 86401, 5)
	assert.Error(t, err)
	_, err = Encode(nil, 86400, 5)
	assert.Error(t, err)
	_, err = Encode(testEphemeris(), -6, 5)
	assert.Error(t, err)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	bits, err := Encode(testEphemeris(), 86400, 5)
	require.NoError(t, err)

	bits[3*SubframeBits+100] *= -1
	_, err = Decode(bits)
	assert.True(t, errors.Is(err, ErrParity), "err = %v", err)

	_, err = Decode(bits[:299])
	assert.Error(t, err)
}

func BenchmarkEncode(b *testing.B) {
	eph := testEphemeris()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(eph, 86400, DefaultSubframes); err != nil {
			b.Fatal(err)
		}
	}
}
