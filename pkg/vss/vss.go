// Package vss implements Feldman verifiable secret sharing over the
// pkg/group scalar field: deal a random polynomial, hand out evaluations as
// shares, let any recipient check their share against a public commitment
// vector, and reconstruct the secret (or recombine any linear function of
// the shares) via Lagrange interpolation.
//
// Adapted from the teacher's internal/crypto/polynomial/polynomial.go
// (Evaluate keeps the teacher's Horner's-method shape); Commitments,
// Scheme, VerifyShare, EvaluatePublic, Reconstruct, and
// LagrangeCoefficient are new — CGGMP's polynomial package never needed a
// client-side Lagrange reconstruction.
package vss

import (
	"fmt"
	"io"

	"github.com/smallyu/go-schnorr-tss/pkg/group"
)

// Polynomial is f(x) = a_0 + a_1*x + ... + a_t*x^t over the scalar field.
// a_0 is the dealt secret.
type Polynomial struct {
	Coeffs []group.Scalar
}

// NewPolynomial deals a random polynomial of the given degree. If secret is
// nil, a_0 is itself sampled at random.
func NewPolynomial(degree int, secret *group.Scalar, rnd io.Reader) (*Polynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("vss: negative degree %d", degree)
	}
	coeffs := make([]group.Scalar, degree+1)
	if secret != nil {
		coeffs[0] = *secret
	} else {
		s, err := group.RandScalar(rnd)
		if err != nil {
			return nil, err
		}
		coeffs[0] = s
	}
	for i := 1; i <= degree; i++ {
		c, err := group.RandScalar(rnd)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &Polynomial{Coeffs: coeffs}, nil
}

// Secret returns the polynomial's constant term.
func (p *Polynomial) Secret() group.Scalar { return p.Coeffs[0] }

// Degree is the polynomial's degree (the dealing threshold t).
func (p *Polynomial) Degree() int { return len(p.Coeffs) - 1 }

// Evaluate computes f(x) via Horner's method.
func (p *Polynomial) Evaluate(x uint16) group.Scalar {
	xs := group.ScalarFromInt(int64(x))
	result := p.Coeffs[len(p.Coeffs)-1]
	for i := len(p.Coeffs) - 2; i >= 0; i-- {
		result = result.Mul(xs).Add(p.Coeffs[i])
	}
	return result
}

// Commitments returns the Feldman commitment vector C_k = a_k * G.
func (p *Polynomial) Commitments() []group.Point {
	out := make([]group.Point, len(p.Coeffs))
	for i, c := range p.Coeffs {
		out[i] = group.ScalarBaseMult(c)
	}
	return out
}

// Scheme is the public half of a Feldman dealing: the commitment vector and
// the threshold it implies. Recipients use it to validate shares without
// learning the secret.
type Scheme struct {
	Commitments []group.Point
	Threshold   int
}

// SchemeOf builds the Scheme a dealer publishes alongside its shares.
func (p *Polynomial) SchemeOf() Scheme {
	return Scheme{Commitments: p.Commitments(), Threshold: p.Degree()}
}

// EvaluatePublic evaluates the commitment vector itself at x, i.e. it
// computes f(x)*G without knowing f. Used to validate a share publicly and
// to build the synthetic "summed" scheme in sign Round3/Round4.
func (s Scheme) EvaluatePublic(x uint16) group.Point {
	xs := group.ScalarFromInt(int64(x))
	acc := s.Commitments[len(s.Commitments)-1]
	for i := len(s.Commitments) - 2; i >= 0; i-- {
		acc = acc.ScalarMult(xs).Add(s.Commitments[i])
	}
	return acc
}

// VerifyShare checks that share is consistent with s at evaluation point x:
// share*G == f(x)*G as computed from the public commitment vector.
func (s Scheme) VerifyShare(x uint16, share group.Scalar) bool {
	if len(s.Commitments) == 0 {
		return false
	}
	return group.ScalarBaseMult(share).Equal(s.EvaluatePublic(x))
}

// Add returns the pointwise sum of two commitment schemes (used to build
// vss_sum in sign Round3/Round4). If the vectors differ in length, the
// shorter one is padded with the identity; the result's Threshold is the
// larger of the two.
func (s Scheme) Add(o Scheme) Scheme {
	n := len(s.Commitments)
	if len(o.Commitments) > n {
		n = len(o.Commitments)
	}
	out := make([]group.Point, n)
	for i := 0; i < n; i++ {
		var a, b group.Point
		if i < len(s.Commitments) {
			a = s.Commitments[i]
		} else {
			a = group.Infinity()
		}
		if i < len(o.Commitments) {
			b = o.Commitments[i]
		} else {
			b = group.Infinity()
		}
		out[i] = a.Add(b)
	}
	t := s.Threshold
	if o.Threshold > t {
		t = o.Threshold
	}
	return Scheme{Commitments: out, Threshold: t}
}

// LagrangeCoefficient computes l_index = prod_{j in all, j != index} j/(j-index),
// the coefficient used to recombine index's share into the secret at x=0.
func LagrangeCoefficient(index uint16, all []uint16) group.Scalar {
	num := group.ScalarFromInt(1)
	den := group.ScalarFromInt(1)
	xi := group.ScalarFromInt(int64(index))
	for _, j := range all {
		if j == index {
			continue
		}
		xj := group.ScalarFromInt(int64(j))
		num = num.Mul(xj)
		den = den.Mul(xj.Sub(xi))
	}
	return num.Mul(den.Invert())
}

// Reconstruct Lagrange-interpolates f(0) from a set of (index, share) pairs.
// Returns an error if fewer than threshold+1 shares are provided.
func Reconstruct(threshold int, shares map[uint16]group.Scalar) (group.Scalar, error) {
	if len(shares) < threshold+1 {
		return group.Scalar{}, fmt.Errorf("vss: need at least %d shares, got %d", threshold+1, len(shares))
	}
	indices := make([]uint16, 0, len(shares))
	for idx := range shares {
		indices = append(indices, idx)
	}
	acc := group.ZeroScalar()
	for _, idx := range indices {
		l := LagrangeCoefficient(idx, indices)
		acc = acc.Add(shares[idx].Mul(l))
	}
	return acc, nil
}
