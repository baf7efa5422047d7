package ephemeris

import (
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSatStateOrbitRadius(t *testing.T) {
	eph := testEphemeris()

	for _, tow := range []float64{86400, 93600, 100800} {
		pos, vel, _, _, err := eph.SatState(tow)
		require.NoError(t, err)

		r := pos.Norm()
		assert.InDelta(t, 26.56e6, r, 0.2e6, "radius at tow %v", tow)
		speed := vel.Norm()
		assert.Greater(t, speed, 2500.0, "ecef speed at tow %v", tow)
		assert.Less(t, speed, 4500.0, "ecef speed at tow %v", tow)
	}
}

func TestSatStateVelocityMatchesPosition(t *testing.T) {
	eph := testEphemeris()
	const tow, h = 90000.0, 0.5

	_, vel, _, _, err := eph.SatState(tow)
	require.NoError(t, err)
	before, _, _, _, err := eph.SatState(tow - h)
	require.NoError(t, err)
	after, _, _, _, err := eph.SatState(tow + h)
	require.NoError(t, err)

	for axis := 0; axis < 3; axis++ {
		fd := (after[axis] - before[axis]) / (2 * h)
		assert.InDelta(t, fd, vel[axis], 1e-3, "axis %d", axis)
	}
}

func TestSatStateClock(t *testing.T) {
	eph := testEphemeris()
	eph.Ecc = 0
	eph.Af2 = 1e-18

	_, _, clk, rate, err := eph.SatState(eph.TOC.TOW)
	require.NoError(t, err)
	assert.InDelta(t, eph.Af0-eph.TGD, clk, 1e-18)
	assert.InDelta(t, eph.Af1, rate, 1e-24)

	_, _, clk, rate, err = eph.SatState(eph.TOC.TOW + 100)
	require.NoError(t, err)
	assert.InDelta(t, eph.Af0+100*(eph.Af1+100*eph.Af2)-eph.TGD, clk, 1e-18)
	assert.InDelta(t, eph.Af1+200*eph.Af2, rate, 1e-24)
}

func TestSatStateWeekRollover(t *testing.T) {
	eph := testEphemeris()
	eph.TOE.TOW = 604000
	eph.TOC.TOW = 604000

	// 100 s into the next week is 900 s after toe, not half a week before.
	a, _, _, _, err := eph.SatState(100)
	require.NoError(t, err)
	b, _, _, _, err := eph.SatState(604900)
	require.NoError(t, err)
	for axis := 0; axis < 3; axis++ {
		assert.InDelta(t, b[axis], a[axis], 1e-6)
	}
}

func TestSatStateKeplerFailure(t *testing.T) {
	eph := testEphemeris()
	eph.M0 = math.NaN()

	_, _, _, _, err := eph.SatState(93600)
	assert.ErrorIs(t, err, ErrKeplerNoConvergence)
}

func TestSetGet(t *testing.T) {
	var set Set
	eph := testEphemeris()
	eph.PRN = 4
	set[4] = eph

	invalid := testEphemeris()
	invalid.PRN = 7
	invalid.Valid = false
	set[7] = invalid

	assert.Same(t, eph, set.Get(4))
	assert.Nil(t, set.Get(7))
	assert.Nil(t, set.Get(0))
	assert.Nil(t, set.Get(-1))
	assert.Nil(t, set.Get(32))
	assert.Equal(t, []int{4}, set.PRNs())
}

const sampleYAML = `
ephemerides:
  - sv: 1
    toc: {week: 1846, tow: 93600}
    toe: {week: 1846, tow: 93600}
    sv_accuracy: 2.0
    iodc: 42
    iode: 42
    tgd: 5.122274160385e-09
    af0: 1.227259635925e-05
    af1: -1.250555214938e-12
    m0: 1.219012334681
    dn: 4.538760766371e-09
    ecc: 4.522286471911e-03
    sqrta: 5153.654832840
    crc: 209.09375
    crs: 21.34375
    omega0: -1.979812468421
    omegadot: -8.014619457557e-09
    inc: 0.961750931327
    w: 0.553422349370
  - sv: 3
    valid: false
    sqrta: 5153.7
    ecc: 0.01
  - sv: 40
    sqrta: 5153.7
  - sv: 5
    sqrta: -1
  - sv: 1
    sqrta: 5000
`

func TestLoad(t *testing.T) {
	set, err := Load(strings.NewReader(sampleYAML), testLogger())
	require.NoError(t, err)

	eph := set.Get(0)
	require.NotNil(t, eph)
	assert.Equal(t, 0, eph.PRN)
	assert.Equal(t, 1846, eph.TOE.Week)
	assert.Equal(t, 93600.0, eph.TOE.TOW)
	assert.Equal(t, 42, eph.IODC)
	assert.InDelta(t, 5153.654832840, eph.SqrtA, 1e-9)
	assert.True(t, eph.Valid)

	require.NotNil(t, set[2], "explicitly invalid entry is kept")
	assert.False(t, set[2].Valid)
	assert.Nil(t, set.Get(2))

	assert.Nil(t, set.Get(4), "negative sqrta is rejected")
	assert.Equal(t, []int{0}, set.PRNs())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("ephemerides: [oops"), testLogger())
	assert.Error(t, err)

	set, err := Load(strings.NewReader(""), testLogger())
	require.NoError(t, err)
	assert.Empty(t, set.PRNs())
}
