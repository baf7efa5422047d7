package ephemeris

// testEphemeris returns a representative GPS ephemeris referenced to
// 2015-05-25 02:00 GPS time (week 1846, TOW 93600).
func testEphemeris() *Ephemeris {
	return &Ephemeris{
		PRN:        0,
		TOC:        Time{Week: 1846, TOW: 93600},
		TOE:        Time{Week: 1846, TOW: 93600},
		L2Codes:    1,
		L2PFlag:    0,
		SVAccuracy: 2.0,
		Health:     0,
		IODC:       0x2A,
		IODE:       0x2A,
		TGD:        5.122274160385e-09,
		Af0:        1.227259635925e-05,
		Af1:        -1.250555214938e-12,
		Af2:        0,
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
