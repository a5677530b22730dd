// Package group is a thin façade over secp256k1 scalar and point arithmetic.
//
// It exists so the rest of this module never imports
// github.com/decred/dcrd/dcrec/secp256k1/v4 directly: every other package
// talks to Scalar and Point values and treats the curve as an opaque
// dependency, the way spec.md describes it.
package group

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

var curve = secp256k1.S256()

// ErrInvalidEncoding is returned when a point or scalar cannot be decoded.
var ErrInvalidEncoding = errors.New("group: invalid encoding")

func order() *big.Int { return curve.Params().N }

// Scalar is an element of the secp256k1 scalar field (mod curve order).
type Scalar struct {
	v *big.Int
}

// ZeroScalar returns the additive identity.
func ZeroScalar() Scalar { return Scalar{v: new(big.Int)} }

// ScalarFromInt reduces a small integer into the scalar field. Useful for
// party indices used as VSS evaluation points.
func ScalarFromInt(i int64) Scalar {
	v := new(big.Int).Mod(big.NewInt(i), order())
	return Scalar{v: v}
}

// ScalarFromBytes interprets b as a big-endian integer, reduced mod the
// curve order. b need not be exactly 32 bytes.
func ScalarFromBytes(b []byte) Scalar {
	v := new(big.Int).SetBytes(b)
	v.Mod(v, order())
	return Scalar{v: v}
}

// RandScalar samples a uniform scalar from rnd (crypto/rand.Reader if nil).
func RandScalar(rnd io.Reader) (Scalar, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	k, err := rand.Int(rnd, order())
	if err != nil {
		return Scalar{}, err
	}
	return Scalar{v: k}, nil
}

// HashToScalar hashes domain-separated parts to a scalar using SHAKE256,
// oversampling by 16 bytes before reducing mod the curve order to keep bias
// negligible.
func HashToScalar(domain string, parts ...[]byte) Scalar {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte(domain))
	for _, p := range parts {
		var lenBuf [8]byte
		be64(lenBuf[:], uint64(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(p)
	}
	out := make([]byte, 48)
	_, _ = h.Read(out)
	v := new(big.Int).SetBytes(out)
	v.Mod(v, order())
	return Scalar{v: v}
}

func be64(b []byte, x uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(x)
		x >>= 8
	}
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool { return s.v == nil || s.v.Sign() == 0 }

// BigInt returns a copy of s as a big.Int in [0, N).
func (s Scalar) BigInt() *big.Int {
	if s.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.v)
}

// Bytes returns the 32-byte big-endian encoding of s.
func (s Scalar) Bytes() []byte {
	out := make([]byte, 32)
	if s.v == nil {
		return out
	}
	b := s.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// Add returns s + o mod N.
func (s Scalar) Add(o Scalar) Scalar {
	return Scalar{v: new(big.Int).Mod(new(big.Int).Add(s.BigInt(), o.BigInt()), order())}
}

// Sub returns s - o mod N.
func (s Scalar) Sub(o Scalar) Scalar {
	return Scalar{v: new(big.Int).Mod(new(big.Int).Sub(s.BigInt(), o.BigInt()), order())}
}

// Mul returns s * o mod N.
func (s Scalar) Mul(o Scalar) Scalar {
	return Scalar{v: new(big.Int).Mod(new(big.Int).Mul(s.BigInt(), o.BigInt()), order())}
}

// Negate returns -s mod N.
func (s Scalar) Negate() Scalar {
	return Scalar{v: new(big.Int).Mod(new(big.Int).Neg(s.BigInt()), order())}
}

// Invert returns the multiplicative inverse of s mod N. Panics if s is zero.
func (s Scalar) Invert() Scalar {
	if s.IsZero() {
		panic("group: invert of zero scalar")
	}
	return Scalar{v: new(big.Int).ModInverse(s.BigInt(), order())}
}

// Equal reports whether s and o represent the same field element, in
// constant time.
func (s Scalar) Equal(o Scalar) bool {
	return subtle.ConstantTimeCompare(s.Bytes(), o.Bytes()) == 1
}

// Zero destroys s's secret material in place; callers holding a Scalar by
// value should reassign it to the zeroized copy, e.g. `s = s.Zero()`.
func (s Scalar) Zero() Scalar {
	if s.v != nil {
		s.v.SetInt64(0)
	}
	return ZeroScalar()
}

// MarshalBinary implements encoding.BinaryMarshaler, so values embedding a
// Scalar round-trip through cbor without a custom codec.
func (s Scalar) MarshalBinary() ([]byte, error) { return s.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Scalar) UnmarshalBinary(b []byte) error {
	*s = ScalarFromBytes(b)
	return nil
}

// Point is an element of the secp256k1 group, in affine coordinates. The
// zero value is the point at infinity.
type Point struct {
	x, y *big.Int
}

// G returns the curve's fixed generator.
func G() Point {
	p := curve.Params()
	return Point{x: new(big.Int).Set(p.Gx), y: new(big.Int).Set(p.Gy)}
}

// Infinity returns the group identity.
func Infinity() Point { return Point{} }

// IsInfinity reports whether p is the identity element.
func (p Point) IsInfinity() bool { return p.x == nil || p.y == nil }

// Add returns p + o.
func (p Point) Add(o Point) Point {
	if p.IsInfinity() {
		return o
	}
	if o.IsInfinity() {
		return p
	}
	x, y := curve.Add(p.x, p.y, o.x, o.y)
	return Point{x: x, y: y}
}

// ScalarMult returns s * p.
func (p Point) ScalarMult(s Scalar) Point {
	if s.IsZero() || p.IsInfinity() {
		return Infinity()
	}
	x, y := curve.ScalarMult(p.x, p.y, s.Bytes())
	return Point{x: x, y: y}
}

// ScalarBaseMult returns s * G.
func ScalarBaseMult(s Scalar) Point {
	if s.IsZero() {
		return Infinity()
	}
	x, y := curve.ScalarBaseMult(s.Bytes())
	return Point{x: x, y: y}
}

// Equal reports whether p and o are the same point.
func (p Point) Equal(o Point) bool {
	if p.IsInfinity() || o.IsInfinity() {
		return p.IsInfinity() == o.IsInfinity()
	}
	return p.x.Cmp(o.x) == 0 && p.y.Cmp(o.y) == 0
}

// Bytes returns the SEC1 compressed encoding: a single 0x00 byte for the
// identity, or 33 bytes (0x02/0x03 prefix || X) otherwise.
func (p Point) Bytes() []byte {
	if p.IsInfinity() {
		return []byte{0x00}
	}
	out := make([]byte, 33)
	if p.y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := p.x.Bytes()
	copy(out[33-len(xb):], xb)
	return out
}

// PointFromBytes decodes the encoding produced by Bytes.
func PointFromBytes(b []byte) (Point, error) {
	if len(b) == 1 && b[0] == 0x00 {
		return Infinity(), nil
	}
	if len(b) != 33 || (b[0] != 0x02 && b[0] != 0x03) {
		return Point{}, ErrInvalidEncoding
	}
	params := curve.Params()
	x := new(big.Int).SetBytes(b[1:])
	if x.Cmp(params.P) >= 0 {
		return Point{}, ErrInvalidEncoding
	}
	// y^2 = x^3 + 7 mod P (secp256k1: a = 0, b = 7)
	rhs := new(big.Int).Exp(x, big.NewInt(3), params.P)
	rhs.Add(rhs, params.B)
	rhs.Mod(rhs, params.P)
	y := new(big.Int).ModSqrt(rhs, params.P)
	if y == nil {
		return Point{}, ErrInvalidEncoding
	}
	wantOdd := b[0] == 0x03
	if y.Bit(0) == 1 != wantOdd {
		y.Sub(params.P, y)
	}
	return Point{x: x, y: y}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler, so values embedding a
// Point round-trip through cbor without a custom codec.
func (p Point) MarshalBinary() ([]byte, error) { return p.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Point) UnmarshalBinary(b []byte) error {
	pt, err := PointFromBytes(b)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}
