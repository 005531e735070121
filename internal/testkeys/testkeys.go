// Package testkeys generates Substrate style keypairs and signatures for tests.
package testkeys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/polkauth/internal/ss58"
	"golang.org/x/crypto/blake2b"
)

// Key is a keypair with its SS58 address
type Key interface {
	Address() string
	Sign(message []byte) []byte
}

// SignHex signs message and returns the 0x prefixed hex signature
func SignHex(k Key, message []byte) string {
	return hexutil.Encode(k.Sign(message))
}

// WrapBytes wraps message the way wallet extensions do for raw payloads
func WrapBytes(message []byte) []byte {
	return append(append([]byte("<Bytes>"), message...), []byte("</Bytes>")...)
}

// Sr25519Key is a schnorrkel keypair
type Sr25519Key struct {
	secret  *schnorrkel.SecretKey
	address string
}

// NewSr25519 generates an sr25519 key with a generic substrate address
func NewSr25519() *Sr25519Key {
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		panic(err)
	}
	pk := public.Encode()
	return &Sr25519Key{secret: secret, address: mustEncode(pk[:])}
}

func (k *Sr25519Key) Address() string { return k.address }

func (k *Sr25519Key) Sign(message []byte) []byte {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext([]byte("substrate"), message))
	if err != nil {
		panic(err)
	}
	enc := sig.Encode()
	return enc[:]
}

// Ed25519Key is an Edwards curve keypair
type Ed25519Key struct {
	private ed25519.PrivateKey
	address string
}

// NewEd25519 generates an ed25519 key with a generic substrate address
func NewEd25519() *Ed25519Key {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &Ed25519Key{private: priv, address: mustEncode(pub)}
}

func (k *Ed25519Key) Address() string { return k.address }

func (k *Ed25519Key) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// EcdsaKey is a secp256k1 keypair
type EcdsaKey struct {
	private *ecdsa.PrivateKey
	address string
}

// NewEcdsa generates a secp256k1 key with a generic substrate address
func NewEcdsa() *EcdsaKey {
	priv, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	id := blake2b.Sum256(crypto.CompressPubkey(&priv.PublicKey))
	return &EcdsaKey{private: priv, address: mustEncode(id[:])}
}

func (k *EcdsaKey) Address() string { return k.address }

func (k *EcdsaKey) Sign(message []byte) []byte {
	digest := blake2b.Sum256(message)
	sig, err := crypto.Sign(digest[:], k.private)
	if err != nil {
		panic(err)
	}
	return sig
}

func mustEncode(accountID []byte) string {
	address, err := ss58.Encode(ss58.PrefixSubstrate, accountID)
	if err != nil {
		panic(err)
	}
	return address
}
