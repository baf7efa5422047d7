// Package cacode generates the GPS L1 C/A Gold codes.
package cacode

import (
	"errors"
	"fmt"

	"github.com/denniszollo/peregrine/internal/gps"
)

// NumPRN is the number of GPS C/A codes generated.
const NumPRN = 32

// ErrInvalidPRN is returned for PRN indices outside 0..31.
var ErrInvalidPRN = errors.New("invalid prn")

// Code is one C/A code period as +1/-1 chips. +1 is a logical one.
type Code [gps.ChipsPerCode]int8

// Table holds the C/A codes for all PRNs, indexed by zero-based PRN.
// It is read-only after construction.
type Table [NumPRN]Code

// g2Delay is the G2 output delay in chips per PRN (IS-GPS-200 Table 3-Ia).
var g2Delay = [NumPRN]int{
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862,
}

// registers runs the G1 and G2 shift registers for one code period,
// returning their outputs in +1/-1 form (logical one is -1).
func registers() (g1, g2 [gps.ChipsPerCode]int8) {
	var r1, r2 [10]int8
	for i := range r1 {
		r1[i] = -1
		r2[i] = -1
	}
	for i := 0; i < gps.ChipsPerCode; i++ {
		g1[i] = r1[9]
		g2[i] = r2[9]
		c1 := r1[2] * r1[9]
		c2 := r2[1] * r2[2] * r2[5] * r2[7] * r2[8] * r2[9]
		for j := 9; j > 0; j-- {
			r1[j] = r1[j-1]
			r2[j] = r2[j-1]
		}
		r1[0] = c1
		r2[0] = c2
	}
	return g1, g2
}

// Generate returns the C/A code for zero-based prn.
func Generate(prn int) (Code, error) {
	var code Code
	if prn < 0 || prn >= NumPRN {
		return code, fmt.Errorf("prn index %d: %w", prn, ErrInvalidPRN)
	}
	g1, g2 := registers()
	j := gps.ChipsPerCode - g2Delay[prn]
	for i := range code {
		code[i] = -g1[i] * g2[(j+i)%gps.ChipsPerCode]
	}
	return code, nil
}

// NewTable generates the codes for every PRN.
func NewTable() *Table {
	var t Table
	g1, g2 := registers()
	for prn := range t {
		j := gps.ChipsPerCode - g2Delay[prn]
		for i := range t[prn] {
			t[prn][i] = -g1[i] * g2[(j+i)%gps.ChipsPerCode]
		}
	}
	return &t
}
