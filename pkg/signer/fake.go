package signer

// FakeOracle is a deterministic test Oracle: it never touches a real key,
// it simply records the digests it was asked to sign and returns a fixed
// signature shape so callers can assert structure without a live key.
type FakeOracle struct {
	Digests [][32]byte
	Sig     [65]byte
}

// NewFakeOracle returns a FakeOracle that answers with sig for every
// digest it is asked to sign.
func NewFakeOracle(sig [65]byte) *FakeOracle {
	return &FakeOracle{Sig: sig}
}

// Sign records the digest and returns the configured signature.
func (o *FakeOracle) Sign(digest [32]byte) ([65]byte, error) {
	o.Digests = append(o.Digests, digest)
	return o.Sig, nil
}
