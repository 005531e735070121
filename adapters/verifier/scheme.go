package verifier

import (
	"fmt"
	"strings"
)

// Scheme verifies signatures for one key type. accountID is the 32 byte
// payload of an SS58 address.
type Scheme interface {
	Name() string
	Verify(message, signature, accountID []byte) bool
}

// SelfTester is implemented by schemes that can check their primitives work
type SelfTester interface {
	SelfTest() error
}

var (
	bytesPrefix = []byte("<Bytes>")
	bytesSuffix = []byte("</Bytes>")
)

// wrapBytes returns message as wallet extensions sign raw payloads
func wrapBytes(message []byte) []byte {
	out := make([]byte, 0, len(bytesPrefix)+len(message)+len(bytesSuffix))
	out = append(out, bytesPrefix...)
	out = append(out, message...)
	return append(out, bytesSuffix...)
}

// SchemeByName returns the built-in scheme called name
func SchemeByName(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SchemeSr25519:
		return Sr25519{}, nil
	case SchemeEd25519:
		return Ed25519{}, nil
	case SchemeEcdsa:
		return Ecdsa{}, nil
	default:
		return nil, fmt.Errorf("unknown signature scheme %q", name)
	}
}

// SchemesByName resolves names in order
func SchemesByName(names []string) ([]Scheme, error) {
	schemes := make([]Scheme, 0, len(names))
	for _, name := range names {
		s, err := SchemeByName(name)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, s)
	}
	return schemes, nil
}
