// Package numeric holds the complex-arithmetic and quadrature primitives used by the pricers.
package numeric

import "math/cmplx"

// I is the imaginary unit.
const I = complex(0, 1)

// Sqrt returns the principal square root: Re >= 0, with the branch cut on the
// negative real axis. For z on the cut the sign of Im(z) (including -0) picks
// the side, so Sqrt(-4-0i) == -2i.
func Sqrt(z complex128) complex128 {
	return cmplx.Sqrt(z)
}

// Log returns the principal natural logarithm, Im in (-pi, pi].
func Log(z complex128) complex128 {
	return cmplx.Log(z)
}

// Exp returns e^z.
func Exp(z complex128) complex128 {
	return cmplx.Exp(z)
}

// IsFinite reports whether both parts of z are finite.
func IsFinite(z complex128) bool {
	return !cmplx.IsNaN(z) && !cmplx.IsInf(z)
}
