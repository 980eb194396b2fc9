package joiner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrTransport marks a match call that never got an HTTP answer.
var ErrTransport = errors.New("joiner match transport failed")

// APIError is a non-2xx answer from the citizen registry. Message is the server's own text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("joiner match failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("joiner match failed with status %d", e.Status)
}

// Matcher resolves joiner names to Discord user ids in one batched call.
// The returned map is keyed by NormalizeKey of each name the registry recognized.
type Matcher interface {
	Match(ctx context.Context, joiners []string) (map[string]string, error)
}

// NormalizeKey trims and applies NFKC so full-width input matches registry keys.
func NormalizeKey(name string) string {
	return norm.NFKC.String(strings.TrimSpace(name))
}

// Resolve maps joiner names to Discord ids in input order. Names the registry did not
// recognize are dropped, as are repeated ids.
func Resolve(joiners []string, ids map[string]string) []string {
	out := make([]string, 0, len(joiners))
	seen := make(map[string]struct{}, len(joiners))
	for _, j := range joiners {
		key := NormalizeKey(j)
		id, ok := ids[key]
		if !ok || id == "" {
			slog.Warn("joiner is not a registry key", "joiner", strings.TrimSpace(j), "key", key)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

func ParseAnswer(s string) (Answer, bool) {
	switch Answer(s) {
	case AnswerYes:
		return AnswerYes, true
	case AnswerNo:
		return AnswerNo, true
	default:
		return "", false
	}
}

// Confirmation tracks answers from the joiners that were DMed. It is not safe for
// concurrent use; the session manager serializes access.
type Confirmation struct {
	expected map[string]struct{}
	order    []string
	answers  map[string]Answer
}

func NewConfirmation(discordIDs []string) *Confirmation {
	c := &Confirmation{
		expected: make(map[string]struct{}, len(discordIDs)),
		answers:  make(map[string]Answer, len(discordIDs)),
	}
	for _, id := range discordIDs {
		if _, dup := c.expected[id]; dup {
			continue
		}
		c.expected[id] = struct{}{}
		c.order = append(c.order, id)
	}
	return c
}

// Record stores an answer. Answers from users that were not asked are ignored and
// a later answer from the same user replaces the earlier one.
func (c *Confirmation) Record(discordID string, answer Answer) bool {
	if _, ok := c.expected[discordID]; !ok {
		return false
	}
	c.answers[discordID] = answer
	return true
}

func (c *Confirmation) Expected() []string {
	return append([]string(nil), c.order...)
}

func (c *Confirmation) Answered() int {
	return len(c.answers)
}

func (c *Confirmation) Complete() bool {
	return len(c.answers) == len(c.expected)
}

// Approved is true only when every joiner answered yes.
func (c *Confirmation) Approved() bool {
	if !c.Complete() {
		return false
	}
	for _, a := range c.answers {
		if a != AnswerYes {
			return false
		}
	}
	return true
}

// Rejected is true as soon as any joiner answered no.
func (c *Confirmation) Rejected() bool {
	for _, a := range c.answers {
		if a == AnswerNo {
			return true
		}
	}
	return false
}
