package vss_test

import (
	"crypto/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smallyu/go-schnorr-tss/pkg/group"
	"github.com/smallyu/go-schnorr-tss/pkg/vss"
)

var _ = Describe("Feldman dealing", func() {
	var (
		secret group.Scalar
		poly   *vss.Polynomial
		scheme vss.Scheme
	)

	BeforeEach(func() {
		var err error
		secret, err = group.RandScalar(rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		poly, err = vss.NewPolynomial(2, &secret, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		scheme = poly.SchemeOf()
	})

	It("dealt secret matches the polynomial's constant term", func() {
		Expect(poly.Secret().Equal(secret)).To(BeTrue())
	})

	It("every honestly-evaluated share verifies against the public scheme", func() {
		for x := uint16(1); x <= 5; x++ {
			share := poly.Evaluate(x)
			Expect(scheme.VerifyShare(x, share)).To(BeTrue(), "share at x=%d should verify", x)
		}
	})

	It("a tampered share fails verification", func() {
		share := poly.Evaluate(1)
		tampered := share.Add(group.ScalarFromInt(1))
		Expect(scheme.VerifyShare(1, tampered)).To(BeFalse())
	})

	It("reconstructs the secret from any threshold+1 shares", func() {
		subsets := [][]uint16{{1, 2, 3}, {2, 3, 4}, {1, 3, 5}}
		for _, idxs := range subsets {
			shares := make(map[uint16]group.Scalar, len(idxs))
			for _, x := range idxs {
				shares[x] = poly.Evaluate(x)
			}
			got, err := vss.Reconstruct(poly.Degree(), shares)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Equal(secret)).To(BeTrue(), "subset %v failed to reconstruct", idxs)
		}
	})

	It("refuses to reconstruct from fewer than threshold+1 shares", func() {
		shares := map[uint16]group.Scalar{1: poly.Evaluate(1), 2: poly.Evaluate(2)}
		_, err := vss.Reconstruct(poly.Degree(), shares)
		Expect(err).To(HaveOccurred())
	})

	It("Add combines two dealings' commitment vectors pointwise", func() {
		secret2, err := group.RandScalar(rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		poly2, err := vss.NewPolynomial(2, &secret2, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		scheme2 := poly2.SchemeOf()

		summed := scheme.Add(scheme2)
		sumShare := poly.Evaluate(1).Add(poly2.Evaluate(1))
		Expect(summed.VerifyShare(1, sumShare)).To(BeTrue())
	})
})

var _ = Describe("EvaluatePublic", func() {
	It("agrees with Evaluate composed with ScalarBaseMult", func() {
		secret, err := group.RandScalar(rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		poly, err := vss.NewPolynomial(3, &secret, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		scheme := poly.SchemeOf()

		for x := uint16(1); x <= 6; x++ {
			want := group.ScalarBaseMult(poly.Evaluate(x))
			Expect(scheme.EvaluatePublic(x).Equal(want)).To(BeTrue(), "mismatch at x=%d", x)
		}
	})
})
