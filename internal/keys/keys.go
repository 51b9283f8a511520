// Package keys implements spending-key reduction and the sk -> (a, eta)
// derivation chain (SPEC_FULL.md §4.D), grounded on
// original_source/libzeropool-rs/src/keys.rs. The key-derivation group
// arithmetic reuses go.dedis.ch/kyber/v3's bn256 pairing suite, the same
// dependency the teacher itself imports (trie_kzg_bn256/model.go) for its
// own BN254-family scalar/point operations.
package keys

import (
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

var suite = bn256.NewSuiteG1()

// ReduceSK reduces an arbitrary seed, interpreted as a little-endian
// integer, modulo the field order -- mirroring
// Num::from_uint_reduced(Uint::from_little_endian(seed)).
func ReduceSK(seed []byte) poseidon.Fr {
	return poseidon.FromBytesReducedLE(seed)
}

// Keys is the spending-key material derived from a single secret scalar:
// sk is the raw spending key, a is the public spend point's reduced
// coordinate, eta is the viewing key derived from a.
type Keys struct {
	SK  poseidon.Fr
	A   poseidon.Fr
	Eta poseidon.Fr
}

// Derive computes (a, eta) from sk via scalar multiplication of the bn256
// group base point, reducing the resulting point's canonical encoding into
// the field (the original's derive_key_a/derive_key_eta live outside the
// retrieved sources, so this reproduces their external contract -- a
// curve-point-derived pseudorandom field element -- rather than their
// undocumented internals).
func Derive(sk poseidon.Fr) Keys {
	scalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(sk))
	point := suite.G1().Point().Mul(scalar, nil)

	encoded, err := point.MarshalBinary()
	if err != nil {
		panic("keys: derive: marshal spend point: " + err.Error())
	}
	a := poseidon.FromBytesReduced(encoded)
	eta := poseidon.Hash(a)

	return Keys{SK: sk, A: a, Eta: eta}
}

// DerivePD computes the diversified public key p_d for diversifier d under
// the viewing key eta, the point an address encodes alongside d
// (SPEC_FULL.md §4.D, §4.J).
func DerivePD(d poseidon.Fr, eta poseidon.Fr) poseidon.Fr {
	diversifierScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(poseidon.Hash(d)))
	diversifierPoint := suite.G1().Point().Mul(diversifierScalar, nil)

	etaScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(eta))
	pdPoint := suite.G1().Point().Mul(etaScalar, diversifierPoint)

	encoded, err := pdPoint.MarshalBinary()
	if err != nil {
		panic("keys: derive_pd: marshal point: " + err.Error())
	}
	return poseidon.FromBytesReduced(encoded)
}

// Signature is a Schnorr-style signature over the bn256 group: R is the
// commitment point's encoding, S the response scalar's encoding.
type Signature struct {
	R []byte
	S []byte
}

// Sign produces a Schnorr signature of msg under sk, in the same bn256
// group used throughout this package for key derivation (SPEC_FULL.md
// §4.G step "eddsa_sign"; the original's eddsa_sign lives in the external
// libzeropool crate over its own embedded curve, so this reproduces the
// sign/verify contract rather than its exact curve).
func Sign(sk poseidon.Fr, msg []byte) (Signature, error) {
	skScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(sk))

	nonce := poseidon.Hash(sk, poseidon.FromBytesReduced(msg))
	rScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(nonce))
	rPoint := suite.G1().Point().Mul(rScalar, nil)

	rBytes, err := rPoint.MarshalBinary()
	if err != nil {
		return Signature{}, xerrors.Errorf("keys: sign: marshal R: %w", err)
	}

	challenge := poseidon.Hash(poseidon.FromBytesReduced(rBytes), poseidon.FromBytesReduced(msg))
	challengeScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(challenge))

	sScalar := suite.G1().Scalar().Add(rScalar, suite.G1().Scalar().Mul(challengeScalar, skScalar))
	sBytes, err := sScalar.MarshalBinary()
	if err != nil {
		return Signature{}, xerrors.Errorf("keys: sign: marshal S: %w", err)
	}

	return Signature{R: rBytes, S: sBytes}, nil
}

// Verify checks a Signature produced by Sign against the public point
// derived from sk (suite.G1().Point().Mul(skScalar, nil)).
func Verify(publicPoint kyber.Point, msg []byte, sig Signature) error {
	rPoint := suite.G1().Point()
	if err := rPoint.UnmarshalBinary(sig.R); err != nil {
		return xerrors.Errorf("keys: verify: unmarshal R: %w", err)
	}
	sScalar := suite.G1().Scalar()
	if err := sScalar.UnmarshalBinary(sig.S); err != nil {
		return xerrors.Errorf("keys: verify: unmarshal S: %w", err)
	}

	challenge := poseidon.Hash(poseidon.FromBytesReduced(sig.R), poseidon.FromBytesReduced(msg))
	challengeScalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(challenge))

	lhs := suite.G1().Point().Mul(sScalar, nil)
	rhs := suite.G1().Point().Add(rPoint, suite.G1().Point().Mul(challengeScalar, publicPoint))

	if !lhs.Equal(rhs) {
		return xerrors.New("keys: verify: signature mismatch")
	}
	return nil
}

// PublicPoint returns the bn256 point sk * G, the verification key paired
// with Sign/Verify.
func PublicPoint(sk poseidon.Fr) kyber.Point {
	scalar := suite.G1().Scalar().SetBytes(poseidon.Bytes(sk))
	return suite.G1().Point().Mul(scalar, nil)
}
