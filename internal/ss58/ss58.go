// Package ss58 encodes and decodes Substrate SS58 addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// AccountIDLength is the size of a Substrate account id
const AccountIDLength = 32

// Well known network prefixes
const (
	PrefixPolkadot  uint16 = 0
	PrefixKusama    uint16 = 2
	PrefixSubstrate uint16 = 42
)

const checksumLength = 2

var (
	ErrInvalidBase58   = errors.New("ss58: not base58")
	ErrInvalidLength   = errors.New("ss58: unexpected payload length")
	ErrInvalidPrefix   = errors.New("ss58: invalid network prefix")
	ErrInvalidChecksum = errors.New("ss58: checksum mismatch")
)

var checksumPreimage = []byte("SS58PRE")

// Decode parses address and returns its network prefix and account id
func Decode(address string) (uint16, []byte, error) {
	raw := base58.Decode(address)
	if len(raw) == 0 {
		return 0, nil, ErrInvalidBase58
	}

	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return 0, nil, err
	}

	if len(raw) != prefixLen+AccountIDLength+checksumLength {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}

	body := raw[:len(raw)-checksumLength]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLength], raw[len(raw)-checksumLength:]) {
		return 0, nil, ErrInvalidChecksum
	}

	accountID := make([]byte, AccountIDLength)
	copy(accountID, body[prefixLen:])
	return prefix, accountID, nil
}

// Encode renders accountID as an address for the network prefix
func Encode(prefix uint16, accountID []byte) (string, error) {
	if len(accountID) != AccountIDLength {
		return "", ErrInvalidLength
	}
	if prefix > 16383 {
		return "", ErrInvalidPrefix
	}

	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		body = append(body,
			byte((prefix&0x00fc)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x0003)<<6),
		)
	}
	body = append(body, accountID...)
	sum := checksum(body)
	return base58.Encode(append(body, sum[:checksumLength]...)), nil
}

// Valid reports whether address decodes with a correct checksum
func Valid(address string) bool {
	_, _, err := Decode(address)
	return err == nil
}

func decodePrefix(raw []byte) (uint16, int, error) {
	switch {
	case raw[0] < 64:
		return uint16(raw[0]), 1, nil
	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, 0, ErrInvalidPrefix
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		return uint16(lower) | uint16(upper)<<8, 2, nil
	default:
		return 0, 0, ErrInvalidPrefix
	}
}

func checksum(body []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, checksumPreimage...), body...))
}
