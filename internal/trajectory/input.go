package trajectory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/denniszollo/peregrine/internal/kinematics"
)

// FromPoint builds a single-state trajectory at t=0 from
// x,y,z[,vx,vy,vz[,ax,ay,az[,jx,jy,jz]]]. Unspecified values are zero.
func FromPoint(values []float64) (Trajectory, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("point needs at least x,y,z, got %d values: %w", len(values), ErrInvalidTrajectory)
	}
	if len(values) > kinematics.RowLen-1 {
		return nil, fmt.Errorf("point has %d values, max %d: %w", len(values), kinematics.RowLen-1, ErrInvalidTrajectory)
	}

	row := append([]float64{0}, values...)
	s, err := kinematics.FromRow(row)
	if err != nil {
		return nil, err
	}
	traj := Trajectory{s}
	if err := Validate(traj); err != nil {
		return nil, err
	}
	return traj, nil
}

// ParsePoint parses a comma-separated FromPoint argument such as "6378137,0,0".
func ParsePoint(arg string) (Trajectory, error) {
	fields := strings.Split(arg, ",")
	values := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("point value %d %q: %w", i, f, ErrInvalidTrajectory)
		}
		values = append(values, v)
	}
	return FromPoint(values)
}

// umtColumns maps state row columns to UMT CSV columns: time, then
// position, velocity, acceleration and jerk triples.
var umtColumns = [kinematics.RowLen]int{0, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}

// LoadUMT reads a User Motion Trajectory CSV. Lines starting with '<' are
// comments. Blank lines are skipped.
func LoadUMT(r io.Reader) (Trajectory, error) {
	cr := csv.NewReader(r)
	cr.Comment = '<'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var traj Trajectory
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading umt: %w", err)
		}
		if len(rec) <= umtColumns[len(umtColumns)-1] {
			return nil, fmt.Errorf("umt record %d has %d columns, need %d: %w",
				line, len(rec), umtColumns[len(umtColumns)-1]+1, ErrInvalidTrajectory)
		}

		var row [kinematics.RowLen]float64
		for i, col := range umtColumns {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("umt record %d column %d %q: %w", line, col, rec[col], ErrInvalidTrajectory)
			}
			row[i] = v
		}
		s, err := kinematics.FromRow(row[:])
		if err != nil {
			return nil, err
		}
		traj = append(traj, s)
	}

	if err := Validate(traj); err != nil {
		return nil, err
	}
	return traj, nil
}
