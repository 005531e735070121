package verifier

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// SchemeEd25519 is the Edwards curve account scheme
const SchemeEd25519 = "ed25519"

// Ed25519 verifies ed25519 signatures; the account id is the public key
type Ed25519 struct{}

func (Ed25519) Name() string { return SchemeEd25519 }

func (Ed25519) Verify(message, signature, accountID []byte) bool {
	if len(signature) != ed25519.SignatureSize || len(accountID) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(accountID), message, signature)
}

// SelfTest signs and verifies a fixed message with a fresh keypair
func (e Ed25519) SelfTest() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	msg := []byte("polkauth ed25519 self-test")
	if !e.Verify(msg, ed25519.Sign(priv, msg), pub) {
		return errors.New("ed25519 round trip failed")
	}
	return nil
}
