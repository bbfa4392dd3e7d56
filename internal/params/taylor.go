// Project: Latent Health Discretization and Filtration

package params

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// Poly holds polynomial coefficients in increasing power: p(x) = p[0] + p[1]*x + ...
type Poly []float64

// At evaluates the polynomial with Horner's rule.
func (p Poly) At(x float64) float64 {
	val := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		val = val*x + p[i]
	}
	return val
}

// Derivative returns the k-th derivative of p as a new polynomial.
func (p Poly) Derivative(k int) Poly {
	if k >= len(p) {
		return Poly{0}
	}
	out := make(Poly, len(p)-k)
	for i := range out {
		// d^k/dx^k x^(i+k) = (i+k)!/i! x^i
		out[i] = p[i+k] * float64(combin.Binomial(i+k, k)) * factorial(k)
	}
	return out
}

// TaylorToPoly changes a vector of derivatives at x0, f(x0), f^(1)(x0), f^(2)(x0), ...,
// into the coefficients of the polynomial with exactly that Taylor expansion.
// Coefficients are solved from the highest power down:
//
//	a_n = f^(n)(x0)/n! - sum_{j>n} C(j,n) a_j x0^(j-n)
func TaylorToPoly(taylor []float64, x0 float64) Poly {
	N := len(taylor)
	coeffs := make(Poly, N)
	for n := N - 1; n >= 0; n-- {
		this := taylor[n] / factorial(n)
		for j := N - 1; j > n; j-- {
			this -= float64(combin.Binomial(j, n)) * coeffs[j] * math.Pow(x0, float64(j-n))
		}
		coeffs[n] = this
	}
	return coeffs
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
