package service

import (
	"fmt"
	"strings"

	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/ss58"
)

// AnyPrefix accepts addresses of every network
const AnyPrefix = -1

// MaxDisplayNameLength bounds the optional wallet account name
const MaxDisplayNameLength = 64

// IdentityRules describes which SS58 addresses are accepted
type IdentityRules struct {
	Length int // exact address length in characters
	Prefix int // required network prefix, or AnyPrefix
}

// DefaultIdentityRules accepts 48 character addresses of any network
func DefaultIdentityRules() IdentityRules {
	return IdentityRules{Length: 48, Prefix: AnyPrefix}
}

// validateIdentity returns the trimmed identity, recording problems in verr
func (r IdentityRules) validateIdentity(identity string, verr *core.ValidationError) string {
	identity = strings.TrimSpace(identity)
	if len(identity) != r.Length {
		verr.Add(core.FieldIdentity, fmt.Sprintf("Identity must be %d characters long.", r.Length))
		return identity
	}
	prefix, _, err := ss58.Decode(identity)
	if err != nil {
		verr.Add(core.FieldIdentity, "Invalid SS58 address")
		return identity
	}
	if r.Prefix != AnyPrefix && int(prefix) != r.Prefix {
		verr.Add(core.FieldIdentity, fmt.Sprintf("Identity must use network prefix %d", r.Prefix))
	}
	return identity
}

func validateSignInRequest(rules IdentityRules, req *core.SignInRequest) *core.ValidationError {
	verr := &core.ValidationError{}

	req.Identity = rules.validateIdentity(req.Identity, verr)

	if strings.TrimSpace(req.Signature) == "" {
		verr.Add(core.FieldSignature, "Signature is required")
	}

	uri := req.SignedMessage.URI
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		verr.Add(core.FieldSignedMessage, "URI must start with http or https")
	}
	if req.SignedMessage.Challenge == "" {
		verr.Add(core.FieldSignedMessage, "Challenge is required")
	}

	if len([]rune(req.DisplayName)) > MaxDisplayNameLength {
		verr.Add(core.FieldDisplayName, fmt.Sprintf("Display name must be at most %d characters long.", MaxDisplayNameLength))
	}

	if verr.Empty() {
		return nil
	}
	return verr
}
