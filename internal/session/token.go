package session

import (
	"fmt"
	"strings"
)

const tokenPrefix = "cas"

// Kind is the interaction a component id correlates to.
type Kind string

const (
	KindStart   Kind = "start"
	KindCancel  Kind = "cancel"
	KindEdition Kind = "edition"
	KindForm    Kind = "form"
	KindJoiner  Kind = "joiner"
)

// Token is the parsed form of a component custom id: cas:{kind}:{sessionID}[:{extra}].
type Token struct {
	Kind      Kind
	SessionID string
	Extra     string
}

func (t Token) String() string {
	if t.Extra == "" {
		return fmt.Sprintf("%s:%s:%s", tokenPrefix, t.Kind, t.SessionID)
	}
	return fmt.Sprintf("%s:%s:%s:%s", tokenPrefix, t.Kind, t.SessionID, t.Extra)
}

// ParseToken parses a custom id. ok is false for ids that are not session tokens.
func ParseToken(customID string) (Token, bool) {
	parts := strings.SplitN(customID, ":", 4)
	if len(parts) < 3 || parts[0] != tokenPrefix || parts[2] == "" {
		return Token{}, false
	}
	t := Token{Kind: Kind(parts[1]), SessionID: parts[2]}
	if len(parts) == 4 {
		t.Extra = parts[3]
	}
	switch t.Kind {
	case KindStart, KindCancel, KindEdition, KindForm:
		return t, t.Extra == ""
	case KindJoiner:
		return t, t.Extra != ""
	default:
		return Token{}, false
	}
}
