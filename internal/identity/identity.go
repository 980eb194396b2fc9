package identity

import (
	"context"
	"strings"
)

type Edition string

const (
	EditionJava    Edition = "java"
	EditionBedrock Edition = "bedrock"
)

// bedrockPrefix marks a Bedrock gamertag written next to Java ids.
const bedrockPrefix = "BE_"

// Checker answers whether a player id resolves to a real account on an edition.
// Implementations report lookup failures as "does not exist".
type Checker interface {
	Exists(ctx context.Context, playerID string, edition Edition) bool
}

// Pinger reports whether the lookup service behind an edition is reachable.
type Pinger interface {
	Ping(ctx context.Context, edition Edition) error
}

func ParseEdition(s string) (Edition, bool) {
	switch Edition(strings.ToLower(strings.TrimSpace(s))) {
	case EditionJava:
		return EditionJava, true
	case EditionBedrock:
		return EditionBedrock, true
	default:
		return "", false
	}
}

// LookupID strips the Bedrock prefix used in application forms.
func LookupID(playerID string) string {
	return strings.TrimPrefix(strings.TrimSpace(playerID), bedrockPrefix)
}

// CompanionEdition returns bedrock for prefixed ids and the applicant's edition otherwise.
func CompanionEdition(playerID string, applicant Edition) Edition {
	if strings.HasPrefix(strings.TrimSpace(playerID), bedrockPrefix) {
		return EditionBedrock
	}
	if applicant == "" {
		return EditionJava
	}
	return applicant
}
