// Package samples encodes synthesized buffers into the on-disk sample formats.
package samples

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format selects the output sample encoding.
type Format string

const (
	// Int8 writes one signed byte per sample.
	Int8 Format = "int8"
	// OneBit packs the sign of eight samples per byte, first sample in the MSB.
	OneBit Format = "1bit"
	// OneBitRev packs the sign of eight samples per byte, first sample in the LSB.
	OneBitRev Format = "1bitrev"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown sample format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{Int8, OneBit, OneBitRev}
}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// EncodedLen returns the number of bytes n samples occupy in format f.
func (f Format) EncodedLen(n int) int {
	if f == Int8 {
		return n
	}
	return (n + 7) / 8
}

// Write encodes buf to w. A trailing partial byte in the 1-bit formats is
// padded with zero bits.
func Write(w io.Writer, buf []int8, f Format) (int64, error) {
	bw := bufio.NewWriterSize(w, 1<<20)
	var n int64
	var err error

	switch f {
	case Int8:
		n, err = writeInt8(bw, buf)
	case OneBit:
		n, err = writeBits(bw, buf, false)
	case OneBitRev:
		n, err = writeBits(bw, buf, true)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
	if err != nil {
		return n, fmt.Errorf("writing %s samples: %w", f, err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flushing %s samples: %w", f, err)
	}
	return n, nil
}

func writeInt8(bw *bufio.Writer, buf []int8) (int64, error) {
	for i, v := range buf {
		if err := bw.WriteByte(byte(v)); err != nil {
			return int64(i), err
		}
	}
	return int64(len(buf)), nil
}

// writeBits emits bit 1 for non-negative samples.
func writeBits(bw *bufio.Writer, buf []int8, lsbFirst bool) (int64, error) {
	var n int64
	for i := 0; i < len(buf); i += 8 {
		end := min(i+8, len(buf))
		if err := bw.WriteByte(packByte(buf[i:end], lsbFirst)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func packByte(group []int8, lsbFirst bool) byte {
	var b byte
	for j, v := range group {
		if v < 0 {
			continue
		}
		if lsbFirst {
			b |= 1 << j
		} else {
			b |= 0x80 >> j
		}
	}
	return b
}
