package session

import (
	"context"
	"fmt"
	"time"

	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/joiner"
)

type Step string

const (
	StepIntro             Step = "intro"
	StepSelectVersion     Step = "select_version"
	StepModalSubmitted    Step = "modal_submitted"
	StepValidating        Step = "validating"
	StepWaitingForJoiners Step = "waiting_for_joiners"
)

// Status is the terminal outcome written to the transcript.
type Status string

const (
	StatusApproved  Status = "承認"
	StatusRejected  Status = "却下"
	StatusCancelled Status = "キャンセル"
	StatusTimeout   Status = "タイムアウト"
)

// logTimeLayout matches the ja-JP rendering used by the immigration office's other tools.
const logTimeLayout = "2006/01/02 15:04:05"

// Session is one immigration application. All fields are guarded by Manager.mu.
type Session struct {
	ID        string
	ChannelID string
	UserID    string
	Step      Step
	Status    Status

	Edition      identity.Edition
	Form         extraction.Form
	Record       extraction.Record
	Extracted    bool
	Confirmation *joiner.Confirmation

	CreatedAt    time.Time
	LastActivity time.Time
	WaitingSince time.Time

	logs   []string
	cancel context.CancelFunc
}

func newSessionID(channelID, userID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", channelID, userID, now.UnixMilli())
}

func (s *Session) logf(now time.Time, loc *time.Location, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.logs = append(s.logs, fmt.Sprintf("[%s] %s", now.In(loc).Format(logTimeLayout), line))
}

// snapshot copies the fields read outside the lock.
func (s *Session) snapshot() Session {
	c := *s
	c.logs = append([]string(nil), s.logs...)
	c.cancel = nil
	return c
}

func (s *Session) Logs() []string {
	return append([]string(nil), s.logs...)
}
