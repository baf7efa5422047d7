// Package gps holds the physical and signal constants shared by the
// L1 C/A model.
package gps

const (
	// SpeedOfLight in m/s.
	SpeedOfLight = 299792458.0

	// L1Frequency is the L1 carrier frequency in Hz.
	L1Frequency = 1.57542e9

	// ChipRate is the C/A code chipping rate in chips/s.
	ChipRate = 1.023e6

	// ChipsPerCode is the C/A code period in chips.
	ChipsPerCode = 1023

	// CodesPerBit is the number of C/A code periods per navigation bit.
	CodesPerBit = 20

	// BitRate is the navigation message bit rate in bits/s.
	BitRate = 50

	// Pi is the value of pi used by the broadcast ephemeris (IS-GPS-200).
	Pi = 3.1415926535898

	// OmegaEDot is the WGS-84 Earth rotation rate in rad/s.
	OmegaEDot = 7.2921151467e-5

	// GM is the WGS-84 Earth gravitational constant in m^3/s^2.
	GM = 3.986005e14

	// RelativisticF is the relativistic clock correction constant in s/sqrt(m).
	RelativisticF = -4.442807633e-10

	// SecondsPerWeek is the length of a GPS week.
	SecondsPerWeek = 604800.0
)
