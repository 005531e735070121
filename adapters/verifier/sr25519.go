package verifier

import (
	"errors"

	"github.com/ChainSafe/go-schnorrkel"
)

// SchemeSr25519 is the default Substrate account scheme
const SchemeSr25519 = "sr25519"

const (
	sr25519SignatureSize = 64
	sr25519PublicKeySize = 32
)

var substrateContext = []byte("substrate")

// Sr25519 verifies schnorrkel signatures made in the "substrate" signing context
type Sr25519 struct{}

func (Sr25519) Name() string { return SchemeSr25519 }

func (Sr25519) Verify(message, signature, accountID []byte) bool {
	if len(signature) != sr25519SignatureSize || len(accountID) != sr25519PublicKeySize {
		return false
	}

	var pkBytes [sr25519PublicKeySize]byte
	copy(pkBytes[:], accountID)
	pub := new(schnorrkel.PublicKey)
	if err := pub.Decode(pkBytes); err != nil {
		return false
	}

	var sigBytes [sr25519SignatureSize]byte
	copy(sigBytes[:], signature)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(sigBytes); err != nil {
		return false
	}

	ok, err := pub.Verify(sig, schnorrkel.NewSigningContext(substrateContext, message))
	return err == nil && ok
}

// SelfTest signs and verifies a fixed message with a fresh keypair
func (s Sr25519) SelfTest() error {
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return err
	}
	msg := []byte("polkauth sr25519 self-test")
	sig, err := secret.Sign(schnorrkel.NewSigningContext(substrateContext, msg))
	if err != nil {
		return err
	}
	pk := public.Encode()
	enc := sig.Encode()
	if !s.Verify(msg, enc[:], pk[:]) {
		return errors.New("sr25519 round trip failed")
	}
	return nil
}
