// Package noise adds reproducible Gaussian noise to quantized sample buffers.
package noise

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultPoolSize is the number of noise values drawn before the pool repeats.
	DefaultPoolSize = 16 * 1024 * 1024
	// DefaultSeed makes runs reproducible unless overridden.
	DefaultSeed = 222
)

// Injector draws a finite pool of quantized normal noise and tiles it over a buffer.
type Injector struct {
	PoolSize int
	Seed     uint64
}

// NewInjector returns an Injector with the default pool size and seed.
func NewInjector() Injector {
	return Injector{PoolSize: DefaultPoolSize, Seed: DefaultSeed}
}

// Pool draws n values of N(0, level), rounds them half to even and wraps
// them into int8.
func (in Injector) Pool(n int, level float64) []int8 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: level,
		Src:   rand.NewSource(in.Seed),
	}
	pool := make([]int8, n)
	for i := range pool {
		pool[i] = int8(int64(math.RoundToEven(dist.Rand())))
	}
	return pool
}

// Add adds noise of standard deviation level to buf in place. Sums wrap
// around in int8. A non-positive level leaves buf untouched.
func (in Injector) Add(buf []int8, level float64) {
	if !(level > 0) || len(buf) == 0 {
		return
	}
	size := in.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	pool := in.Pool(min(size, len(buf)), level)
	for i := range buf {
		buf[i] += pool[i%len(pool)]
	}
}
