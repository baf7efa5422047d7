package kinematics

import (
	"math"
	"testing"
)

func sampleState() State {
	return State{
		T:    12.5,
		Pos:  Vec3{6378137.0, -1200.25, 432.125},
		Vel:  Vec3{3.5, -7.25, 0.5},
		Acc:  Vec3{0.25, 1.5, -9.81},
		Jerk: Vec3{0.01, -0.02, 0.03},
	}
}

func TestIntegrateZero(t *testing.T) {
	s := sampleState()
	got := Integrate(s, 0)
	if got != s {
		t.Errorf("Integrate(s, 0) = %+v, want %+v", got, s)
	}
}

func TestIntegrateComposes(t *testing.T) {
	s := sampleState()

	tests := []struct {
		name     string
		dt1, dt2 float64
	}{
		{"forward", 0.3, 0.7},
		{"backward", -0.25, -1.5},
		{"mixed", 2.0, -0.5},
		{"long", 10.0, 20.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			twoStep := Integrate(Integrate(s, tt.dt1), tt.dt2)
			oneStep := Integrate(s, tt.dt1+tt.dt2)

			a := twoStep.Row()
			b := oneStep.Row()
			for i := range a {
				tol := 1e-9 * math.Max(1, math.Abs(b[i]))
				if math.Abs(a[i]-b[i]) > tol {
					t.Errorf("column %d: two-step %v, one-step %v", i, a[i], b[i])
				}
			}
		})
	}
}

func TestIntegrateFreeFall(t *testing.T) {
	s := State{Acc: Vec3{0, 0, -10}}
	got := Integrate(s, 2)
	if got.Pos[2] != -20 {
		t.Errorf("pos z = %v, want -20", got.Pos[2])
	}
	if got.Vel[2] != -20 {
		t.Errorf("vel z = %v, want -20", got.Vel[2])
	}
	if got.T != 2 {
		t.Errorf("T = %v, want 2", got.T)
	}
}

func TestFromRow(t *testing.T) {
	s, err := FromRow([]float64{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if s.Pos != (Vec3{1, 2, 3}) {
		t.Errorf("Pos = %v", s.Pos)
	}
	if s.Vel != (Vec3{}) || s.Acc != (Vec3{}) || s.Jerk != (Vec3{}) {
		t.Errorf("expected zero-padded derivatives, got %+v", s)
	}

	full := sampleState()
	row := full.Row()
	back, err := FromRow(row[:])
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if back != full {
		t.Errorf("FromRow(Row()) = %+v, want %+v", back, full)
	}

	if _, err := FromRow(nil); err == nil {
		t.Error("expected error for empty row")
	}
	if _, err := FromRow(make([]float64, 14)); err == nil {
		t.Error("expected error for over-long row")
	}
}

func TestMagnitudes(t *testing.T) {
	s := State{Pos: Vec3{3, 4, 0}, Vel: Vec3{0, 0, 2}}
	m := Magnitudes(s.PVAJ())
	want := [4]float64{5, 2, 0, 0}
	if m != want {
		t.Errorf("Magnitudes = %v, want %v", m, want)
	}
}

func BenchmarkIntegrate(b *testing.B) {
	s := sampleState()
	for i := 0; i < b.N; i++ {
		s = Integrate(s, 1e-3)
	}
	_ = s
}
