package verifier

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// SchemeEcdsa is the secp256k1 account scheme
const SchemeEcdsa = "ecdsa"

const ecdsaSignatureLength = 65

// Ecdsa verifies recoverable secp256k1 signatures over blake2b-256 of the
// message. The account id is blake2b-256 of the compressed public key.
type Ecdsa struct{}

func (Ecdsa) Name() string { return SchemeEcdsa }

func (Ecdsa) Verify(message, signature, accountID []byte) bool {
	if len(signature) != ecdsaSignatureLength || len(accountID) != blake2b.Size256 {
		return false
	}

	sig := make([]byte, ecdsaSignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}

	digest := blake2b.Sum256(message)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return false
	}

	recovered := blake2b.Sum256(crypto.CompressPubkey(pub))
	return bytes.Equal(recovered[:], accountID)
}

// AccountIDFromPublicKey derives the account id of a compressed secp256k1 key
func AccountIDFromPublicKey(compressed []byte) []byte {
	sum := blake2b.Sum256(compressed)
	return sum[:]
}

// SelfTest signs and recovers a fixed message with a fresh key
func (e Ecdsa) SelfTest() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	msg := []byte("polkauth ecdsa self-test")
	digest := blake2b.Sum256(msg)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return err
	}
	if !e.Verify(msg, sig, AccountIDFromPublicKey(crypto.CompressPubkey(&key.PublicKey))) {
		return errors.New("ecdsa round trip failed")
	}
	return nil
}
