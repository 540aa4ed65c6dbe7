// SPDX-License-Identifier: MIT

// Package cipher implements the chaotic stream cipher: PBKDF2/BLAKE2b key
// derivation into a coupled map lattice, a deterministic keystream
// generator over that lattice, and an encrypt-then-MAC authenticated
// cipher built on top of it.
package cipher

// PerformanceMode selects the lattice size, transient depth, and PBKDF2
// iteration count used for a cipher operation. It is always an explicit
// parameter passed by the caller; nothing in this package reads it from
// the environment.
type PerformanceMode int

const (
	// Fast trades security margin for throughput: a single-cell lattice,
	// a short transient, and a low PBKDF2 iteration count. Refused outside
	// of non-production deployments by internal/config.
	Fast PerformanceMode = iota
	// Balanced is the default mode for ordinary production traffic.
	Balanced
	// Secure maximizes lattice size, transient depth, and PBKDF2 cost at
	// the expense of throughput.
	Secure
)

// String renders the mode the way it appears in CHAOTIC_PERFORMANCE_MODE.
func (m PerformanceMode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Secure:
		return "secure"
	default:
		return "balanced"
	}
}

// ParsePerformanceMode maps a lowercase mode name to a PerformanceMode,
// defaulting to Balanced for anything unrecognized.
func ParsePerformanceMode(s string) PerformanceMode {
	switch s {
	case "fast":
		return Fast
	case "secure":
		return Secure
	default:
		return Balanced
	}
}

// mixingMode distinguishes the simple XOR-fold combiner used by Fast from
// the rotate+XOR+bit-diffuse combiner used by Balanced and Secure.
type mixingMode int

const (
	mixXOROnly mixingMode = iota
	mixRotateXORDiffuse
)

// params bundles every tunable that depends on PerformanceMode.
type params struct {
	LatticeSize       int
	TransientSteps    int
	PBKDF2Iterations  int
	ChunkSize         int
	ScrambleFreq      int
	Mixing            mixingMode
}

func (m PerformanceMode) params() params {
	switch m {
	case Fast:
		return params{
			LatticeSize:      1,
			TransientSteps:   5,
			PBKDF2Iterations: 10,
			ChunkSize:        8192,
			ScrambleFreq:     50,
			Mixing:           mixXOROnly,
		}
	case Secure:
		return params{
			LatticeSize:      16,
			TransientSteps:   1000,
			PBKDF2Iterations: 10000,
			ChunkSize:        2048,
			ScrambleFreq:     100,
			Mixing:           mixRotateXORDiffuse,
		}
	default:
		return params{
			LatticeSize:      8,
			TransientSteps:   500,
			PBKDF2Iterations: 5000,
			ChunkSize:        2048,
			ScrambleFreq:     100,
			Mixing:           mixRotateXORDiffuse,
		}
	}
}
