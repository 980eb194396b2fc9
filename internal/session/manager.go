package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/joiner"
)

// Manager owns the live application sessions and drives them through their steps.
type Manager struct {
	cfg       *config.Config
	debug     *config.DebugSwitch
	discord   discord.Client
	extractor Extractor
	blacklist blacklist.Checker
	identity  identity.Checker
	matcher   joiner.Matcher
	loc       *time.Location
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

func NewManager(cfg *config.Config, debug *config.DebugSwitch, dc discord.Client, ext Extractor, bl blacklist.Checker, id identity.Checker, matcher joiner.Matcher) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		debug:      debug,
		discord:    dc,
		extractor:  ext,
		blacklist:  bl,
		identity:   id,
		matcher:    matcher,
		loc:        cfg.Location(),
		now:        time.Now,
		sessions:   make(map[string]*Session),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Start runs the idle sweeper until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.sweepLoop(ctx)
		slog.Info("session sweeper started", "interval", m.cfg.SessionSweepInterval().String(), "idle_timeout", m.cfg.SessionIdleTimeout().String())
	})
}

// Stop cancels in-flight validations and waits for background work to drain.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.baseCancel()
		m.wg.Wait()
		slog.Info("session manager stopped", "open_sessions", m.SessionCount())
	})
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SessionSweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			m.sweep(m.now())
		}
	}
}

// sweep ends sessions idle past the limit. Sessions waiting on joiners are exempt
// from the idle limit and instead expire after the joiner wait bound.
func (m *Manager) sweep(now time.Time) {
	var idle, unanswered []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Step == StepWaitingForJoiners {
			if now.Sub(s.WaitingSince) > m.cfg.JoinerMaxWait() {
				delete(m.sessions, id)
				unanswered = append(unanswered, s)
			}
			continue
		}
		if now.Sub(s.LastActivity) > m.cfg.SessionIdleTimeout() {
			delete(m.sessions, id)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		slog.Info("session timed out", "session_id", s.ID, "step", string(s.Step))
		m.finish(m.seal(s, StatusTimeout, "タイムアウト"), func(snap Session) {
			m.sendToApplicant(snap, discord.Message{Content: mention(snap.UserID) + messageIdleTimeout})
		})
	}
	for _, s := range unanswered {
		slog.Info("joiner confirmation expired", "session_id", s.ID, "answered", s.Confirmation.Answered())
		m.finish(m.seal(s, StatusRejected, "合流者の回答期限切れ"), func(snap Session) {
			m.sendToApplicant(snap, discord.Message{
				Content: mention(snap.UserID),
				Embeds:  []discord.Embed{rejectionEmbed(reasonJoinerExpired, rejectionDetails(snap))},
			})
		})
	}
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// HandleMessage opens a session for a trigger message in a ticket channel and answers the admin keyword.
func (m *Manager) HandleMessage(event discord.MessageEvent) {
	if event.AuthorIsBot {
		return
	}
	defer m.recoverPanic("message", "", m.channelReport(event.ChannelID))
	if m.cfg.AdminKeyword != "" && strings.TrimSpace(event.Content) == m.cfg.AdminKeyword {
		if _, err := m.discord.SendChannelMessage(event.ChannelID, adminReport(m.SessionCount())); err != nil {
			slog.Error("failed to send admin report", "error", err, "channel_id", event.ChannelID)
		}
		return
	}
	if !m.isTrigger(event) {
		return
	}
	s := m.begin(event.ChannelID, event.AuthorID)
	slog.Info("session started", "session_id", s.ID, "channel_id", event.ChannelID, "user_id", event.AuthorID)
	if _, err := m.discord.SendChannelMessage(event.ChannelID, introMessage(s.ID)); err != nil {
		slog.Error("failed to send intro message", "error", err, "session_id", s.ID)
	}
}

func (m *Manager) isTrigger(event discord.MessageEvent) bool {
	return event.MentionsBot &&
		event.ParentChannelID != "" &&
		event.ParentChannelID == m.cfg.TicketCategoryID &&
		strings.Contains(event.Content, m.cfg.TriggerMarker)
}

func (m *Manager) begin(channelID, userID string) Session {
	now := m.now()
	s := &Session{
		ID:           newSessionID(channelID, userID, now),
		ChannelID:    channelID,
		UserID:       userID,
		Step:         StepIntro,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.logf(now, m.loc, "セッション開始")
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s.snapshot()
}

// HandleComponent handles buttons and selects carrying a session token.
// It returns false for custom ids it does not own.
func (m *Manager) HandleComponent(event discord.ComponentEvent) (handled bool) {
	tok, ok := ParseToken(event.CustomID)
	if !ok {
		return false
	}
	handled = true
	defer m.recoverPanic("component", tok.SessionID, interactionReport(event.Interaction))
	switch tok.Kind {
	case KindStart:
		m.handleStart(event, tok)
	case KindCancel:
		m.handleCancel(event, tok)
	case KindEdition:
		m.handleEdition(event, tok)
	case KindJoiner:
		m.handleJoinerAnswer(event, tok)
	default:
		replyEphemeral(event.Interaction, messageUnsupported)
	}
	return true
}

func (m *Manager) handleStart(event discord.ComponentEvent, tok Token) {
	res := m.update(tok.SessionID, func(s *Session, now time.Time) bool {
		if s.Step != StepIntro {
			return false
		}
		s.Step = StepSelectVersion
		s.logf(now, m.loc, "概要同意: start")
		return true
	})
	switch res {
	case lookupMissing:
		replyEphemeral(event.Interaction, messageSessionMissingButton)
	case lookupRefused:
		replyEphemeral(event.Interaction, messageUnsupported)
	default:
		if err := event.Interaction.Update(editionMessage(tok.SessionID)); err != nil {
			slog.Error("failed to show edition select", "error", err, "session_id", tok.SessionID)
		}
	}
}

func (m *Manager) handleCancel(event discord.ComponentEvent, tok Token) {
	s, res := m.take(tok.SessionID, func(s *Session) bool {
		return s.Step != StepWaitingForJoiners
	})
	switch res {
	case lookupMissing:
		replyEphemeral(event.Interaction, messageSessionMissingButton)
		return
	case lookupRefused:
		replyEphemeral(event.Interaction, messageUnsupported)
		return
	}
	if err := event.Interaction.Update(discord.Message{Content: messageCancelled}); err != nil {
		slog.Error("failed to update cancelled message", "error", err, "session_id", s.ID)
	}
	m.finish(m.seal(s, StatusCancelled, "ユーザーが途中キャンセル"), nil)
}

func (m *Manager) handleEdition(event discord.ComponentEvent, tok Token) {
	var edition identity.Edition
	valid := false
	if len(event.Values) > 0 {
		edition, valid = identity.ParseEdition(event.Values[0])
	}
	res := m.update(tok.SessionID, func(s *Session, now time.Time) bool {
		// Re-selecting reopens the form after the applicant dismissed it.
		if !valid || (s.Step != StepSelectVersion && s.Step != StepModalSubmitted) {
			return false
		}
		s.Edition = edition
		s.Step = StepModalSubmitted
		s.logf(now, m.loc, "ゲームエディション選択: %s", edition)
		return true
	})
	switch res {
	case lookupMissing:
		replyEphemeral(event.Interaction, messageSessionMissing)
	case lookupRefused:
		replyEphemeral(event.Interaction, messageUnsupported)
	default:
		if err := event.Interaction.ShowModal(applicationModal(tok.SessionID)); err != nil {
			slog.Error("failed to show application modal", "error", err, "session_id", tok.SessionID)
		}
	}
}

// HandleModalSubmit accepts the application form and starts validation under the deadline.
// It returns false for modals it does not own.
func (m *Manager) HandleModalSubmit(event discord.ModalSubmitEvent) (handled bool) {
	tok, ok := ParseToken(event.CustomID)
	if !ok || tok.Kind != KindForm {
		return false
	}
	handled = true
	defer m.recoverPanic("modal", tok.SessionID, interactionReport(event.Interaction))
	form := formFromFields(event.Fields)
	var (
		edition identity.Edition
		ctx     context.Context
		cancel  context.CancelFunc
	)
	res := m.update(tok.SessionID, func(s *Session, now time.Time) bool {
		if s.Step != StepModalSubmitted {
			return false
		}
		s.Form = form
		s.Step = StepValidating
		s.logf(now, m.loc, "Modal送信完了")
		s.logf(now, m.loc, "version: %s, MCID: %s, 国籍: %s", s.Edition, form.MCID, form.Nation)
		s.logf(now, m.loc, "期間: %s, 同行者: %s, 合流者: %s", form.Period, noneIfEmpty(strings.Join(form.Companions, ",")), noneIfEmpty(form.Joiners))
		ctx, cancel = context.WithTimeout(m.baseCtx, m.cfg.ValidationTimeout())
		s.cancel = cancel
		edition = s.Edition
		return true
	})
	switch res {
	case lookupMissing:
		replyEphemeral(event.Interaction, messageSessionMissing)
		return true
	case lookupRefused:
		replyEphemeral(event.Interaction, messageUnsupported)
		return true
	}

	if err := event.Interaction.Defer(false); err != nil {
		slog.Error("failed to defer modal reply", "error", err, "session_id", tok.SessionID)
	}
	m.logf(tok.SessionID, "Modal送信後、審査開始")
	editReply(event.Interaction, discord.Message{Content: messageChecking}, tok.SessionID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		defer m.recoverPanic("review", tok.SessionID, interactionReport(event.Interaction))
		m.review(ctx, tok.SessionID, event.Interaction, form, edition)
	}()
	return true
}

func formFromFields(fields map[string]string) extraction.Form {
	joiners := strings.TrimSpace(fields[fieldJoiners])
	if joiners == valueNone {
		joiners = ""
	}
	return extraction.Form{
		MCID:       strings.TrimSpace(fields[fieldMCID]),
		Nation:     strings.TrimSpace(fields[fieldNation]),
		Period:     strings.TrimSpace(fields[fieldPeriod]),
		Companions: extraction.SplitCompanions(fields[fieldCompanions]),
		Joiners:    joiners,
	}
}

type reviewResult struct {
	verdict verdict
	err     error
}

// review races validation against the deadline. A result that arrives after the
// deadline is dropped.
func (m *Manager) review(ctx context.Context, sessionID string, in discord.Interaction, form extraction.Form, edition identity.Edition) {
	editReply(in, discord.Message{Content: messageAnalyzing}, sessionID)

	done := make(chan reviewResult, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		v, err := m.runValidation(ctx, sessionID, form, edition)
		done <- reviewResult{verdict: v, err: err}
	}()

	var r reviewResult
	select {
	case r = <-done:
		if r.err == nil && ctx.Err() != nil {
			r.err = ctx.Err()
		}
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	validating := func(s *Session) bool { return s.Step == StepValidating }
	if r.err != nil {
		if !errors.Is(r.err, context.DeadlineExceeded) {
			slog.Info("validation discarded", "session_id", sessionID, "reason", r.err.Error())
			return
		}
		s, res := m.take(sessionID, validating)
		if res != lookupOK {
			return
		}
		editReply(in, discord.Message{Content: messageValidationTimeout}, sessionID)
		m.finish(m.seal(s, StatusTimeout, "タイムアウトエラー"), nil)
		return
	}

	v := r.verdict
	if v.approved && len(v.joinerIDs) > 0 {
		m.requestJoinerConfirmation(sessionID, in, v.joinerIDs)
		return
	}
	s, res := m.take(sessionID, validating)
	if res != lookupOK {
		return
	}
	if !v.approved {
		m.finish(m.seal(s, StatusRejected, "却下理由: "+v.reason), func(snap Session) {
			editReply(in, discord.Message{Embeds: []discord.Embed{rejectionEmbed(v.reason, rejectionDetails(snap))}}, snap.ID)
		})
		return
	}
	appliedAt := m.timestamp()
	m.finish(m.seal(s, StatusApproved, ""), func(snap Session) {
		editReply(in, discord.Message{Embeds: []discord.Embed{approvalEmbed(snap.Record, appliedAt, false)}}, snap.ID)
		m.publish(snap, appliedAt)
	})
}

// requestJoinerConfirmation parks the session on every resolved joiner, then DMs them.
// A joiner whose DM fails stays unanswered until the wait bound expires. When no DM
// goes out at all the application is rejected at once.
func (m *Manager) requestJoinerConfirmation(sessionID string, in discord.Interaction, joinerIDs []string) {
	var mcid string
	res := m.update(sessionID, func(s *Session, now time.Time) bool {
		if s.Step != StepValidating {
			return false
		}
		mcid = s.Record.MCID
		s.Step = StepWaitingForJoiners
		s.Confirmation = joiner.NewConfirmation(joinerIDs)
		s.WaitingSince = now
		s.logf(now, m.loc, "合流者確認待ち: %s", strings.Join(joinerIDs, ", "))
		return true
	})
	if res != lookupOK {
		return
	}
	editReply(in, discord.Message{Content: messageAwaitingJoiners}, sessionID)

	delivered := 0
	for _, uid := range joinerIDs {
		if !m.alive(sessionID) {
			return
		}
		if err := m.discord.SendDirectMessage(uid, joinerDM(sessionID, mcid)); err != nil {
			slog.Error("failed to send joiner confirmation", "error", err, "session_id", sessionID, "user_id", uid)
			m.logf(sessionID, "合流者DM送信失敗: %s", uid)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return
	}

	s, res := m.take(sessionID, func(s *Session) bool {
		return s.Step == StepWaitingForJoiners && s.Confirmation.Answered() == 0
	})
	if res != lookupOK {
		return
	}
	m.finish(m.seal(s, StatusRejected, "却下理由: "+reasonJoinerUnreachable), func(snap Session) {
		editReply(in, discord.Message{Embeds: []discord.Embed{rejectionEmbed(reasonJoinerUnreachable, rejectionDetails(snap))}}, snap.ID)
	})
}

func (m *Manager) handleJoinerAnswer(event discord.ComponentEvent, tok Token) {
	answer, ok := joiner.ParseAnswer(tok.Extra)
	if !ok {
		replyEphemeral(event.Interaction, messageUnsupported)
		return
	}
	accepted, complete := false, false
	res := m.update(tok.SessionID, func(s *Session, now time.Time) bool {
		if s.Step != StepWaitingForJoiners {
			return false
		}
		accepted = s.Confirmation.Record(event.UserID, answer)
		if accepted {
			s.logf(now, m.loc, "合流者回答: %s → %s", event.UserID, answer)
		}
		complete = s.Confirmation.Complete()
		return true
	})
	switch {
	case res == lookupMissing:
		replyEphemeral(event.Interaction, messageSessionMissing)
		return
	case res == lookupRefused:
		replyEphemeral(event.Interaction, messageUnsupported)
		return
	case !accepted:
		replyEphemeral(event.Interaction, messageNotYourConfirmation)
		return
	}
	replyEphemeral(event.Interaction, messageJoinerThanks)
	if !complete {
		return
	}

	s, res := m.take(tok.SessionID, func(s *Session) bool {
		return s.Step == StepWaitingForJoiners && s.Confirmation.Complete()
	})
	if res != lookupOK {
		return
	}
	if !s.Confirmation.Approved() {
		m.finish(m.seal(s, StatusRejected, "却下理由: "+reasonJoinerDeclined), func(snap Session) {
			m.sendToApplicant(snap, discord.Message{
				Content: mention(snap.UserID),
				Embeds:  []discord.Embed{rejectionEmbed(reasonJoinerDeclined, rejectionDetails(snap))},
			})
		})
		return
	}
	appliedAt := m.timestamp()
	m.finish(m.seal(s, StatusApproved, ""), func(snap Session) {
		m.sendToApplicant(snap, discord.Message{
			Content: mention(snap.UserID),
			Embeds:  []discord.Embed{approvalEmbed(snap.Record, appliedAt, true)},
		})
		m.publish(snap, appliedAt)
	})
}

func (m *Manager) sendToApplicant(s Session, msg discord.Message) {
	if _, err := m.discord.SendChannelMessage(s.ChannelID, msg); err != nil {
		slog.Error("failed to send result to applicant channel", "error", err, "session_id", s.ID, "channel_id", s.ChannelID)
	}
}

func (m *Manager) publish(s Session, appliedAt string) {
	debug := m.debug != nil && m.debug.Enabled()
	channelID := m.cfg.PublicationChannelID(debug)
	if _, err := m.discord.SendChannelMessage(channelID, discord.Message{Embeds: []discord.Embed{publicationEmbed(s.Record, appliedAt)}}); err != nil {
		slog.Error("failed to publish approval", "error", err, "session_id", s.ID, "channel_id", channelID, "debug", debug)
	}
}

func (m *Manager) timestamp() string {
	return m.now().In(m.loc).Format(logTimeLayout)
}

type lookup int

const (
	lookupMissing lookup = iota
	lookupRefused
	lookupOK
)

// update runs fn on a live session under the lock. fn returns false to refuse the
// transition; activity time is refreshed only when it accepts.
func (m *Manager) update(id string, fn func(s *Session, now time.Time) bool) lookup {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return lookupMissing
	}
	now := m.now()
	if !fn(s, now) {
		return lookupRefused
	}
	s.LastActivity = now
	return lookupOK
}

// take removes a session from the table if allow accepts it. Whoever takes a session
// owns its termination, so each session terminates exactly once.
func (m *Manager) take(id string, allow func(s *Session) bool) (*Session, lookup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, lookupMissing
	}
	if allow != nil && !allow(s) {
		return nil, lookupRefused
	}
	delete(m.sessions, id)
	return s, lookupOK
}

// seal records the terminal status on a session that has already been taken.
func (m *Manager) seal(s *Session, status Status, line string) Session {
	now := m.now()
	if s.cancel != nil {
		s.cancel()
	}
	if line != "" {
		s.logf(now, m.loc, "%s", line)
	}
	s.Status = status
	s.logf(now, m.loc, "セッション終了: %s", status)
	return s.snapshot()
}

// finish sends the result notices, then the transcript, in the background.
// A failing notice does not hold back the transcript.
func (m *Manager) finish(s Session, notify func(Session)) {
	slog.Info("session finished", "session_id", s.ID, "status", string(s.Status))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if notify != nil {
			func() {
				defer m.recoverPanic("result notice", s.ID, m.channelReport(s.ChannelID))
				notify(s)
			}()
		}
		defer m.recoverPanic("transcript", s.ID, nil)
		m.emitTranscript(s)
	}()
}

// recoverPanic is the outermost guard of every event path. It logs the panic and,
// when report is set, shows the generic error to the user.
func (m *Manager) recoverPanic(handler, sessionID string, report func(discord.Message) error) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("session handler panicked", "handler", handler, "session_id", sessionID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	if report == nil {
		return
	}
	if err := report(errorMessage()); err != nil {
		slog.Error("failed to report session error", "error", err, "handler", handler, "session_id", sessionID)
	}
}

func interactionReport(in discord.Interaction) func(discord.Message) error {
	if in == nil {
		return nil
	}
	return func(msg discord.Message) error {
		if in.Responded() {
			return in.FollowUp(msg)
		}
		return in.Reply(msg)
	}
}

func (m *Manager) channelReport(channelID string) func(discord.Message) error {
	if channelID == "" {
		return nil
	}
	return func(msg discord.Message) error {
		msg.Ephemeral = false
		_, err := m.discord.SendChannelMessage(channelID, msg)
		return err
	}
}

func (m *Manager) alive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) logf(id, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.logf(m.now(), m.loc, format, args...)
	}
}

func (m *Manager) withSession(id string, fn func(s *Session)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		fn(s)
	}
	return ok
}

func replyEphemeral(in discord.Interaction, content string) {
	if err := in.Reply(discord.Message{Content: content, Ephemeral: true}); err != nil {
		slog.Error("failed to send ephemeral reply", "error", err)
	}
}

func editReply(in discord.Interaction, msg discord.Message, sessionID string) {
	if err := in.EditReply(msg); err != nil {
		slog.Error("failed to edit interaction reply", "error", err, "session_id", sessionID)
	}
}

func noneIfEmpty(s string) string {
	if s == "" {
		return valueNone
	}
	return s
}
