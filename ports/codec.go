package ports

import "github.com/layer-3/polkauth/core"

// SessionCodec converts between sessions and signed tokens.
// Encode stamps the session's ID and validity window before signing.
type SessionCodec interface {
	Encode(session *core.Session) (string, error)
	Decode(token string) (*core.Session, error)
}
