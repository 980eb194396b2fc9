package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/joiner"
)

type sentMessage struct {
	target string
	msg    discord.Message
}

type mockDiscordClient struct {
	mu           sync.Mutex
	channelCalls []sentMessage
	dmCalls      []sentMessage
	fileCalls    []discord.FileMessage
	dmErrByUser  map[string]error
	dmAttempts   int
	onDM         func(userID string)
	panicChannel string
}

func (m *mockDiscordClient) Connect(_ context.Context) error { return nil }
func (m *mockDiscordClient) Close() error                    { return nil }
func (m *mockDiscordClient) Run() error                      { return nil }
func (m *mockDiscordClient) GetBotUserID() (string, error)   { return "bot-1", nil }

func (m *mockDiscordClient) SendChannelMessage(channelID string, msg discord.Message) (string, error) {
	if m.panicChannel != "" && channelID == m.panicChannel {
		panic("channel " + channelID + " exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelCalls = append(m.channelCalls, sentMessage{target: channelID, msg: msg})
	return "msg-1", nil
}

func (m *mockDiscordClient) SendChannelMessageWithFile(msg discord.FileMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileCalls = append(m.fileCalls, msg)
	return nil
}

func (m *mockDiscordClient) SendDirectMessage(userID string, msg discord.Message) error {
	if m.onDM != nil {
		m.onDM(userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dmAttempts++
	if err := m.dmErrByUser[userID]; err != nil {
		return err
	}
	m.dmCalls = append(m.dmCalls, sentMessage{target: userID, msg: msg})
	return nil
}

func (m *mockDiscordClient) GetMessage(_, _ string) (discord.ChannelMessage, error) {
	return discord.ChannelMessage{}, nil
}
func (m *mockDiscordClient) DeleteMessage(_, _ string) error { return nil }
func (m *mockDiscordClient) ResolveChannelName(channelID string) string {
	return "ticket-" + channelID
}
func (m *mockDiscordClient) IsGuildMember(_, _ string) bool { return true }
func (m *mockDiscordClient) ListGuildMembers(_ context.Context, _ string) ([]discord.Member, error) {
	return nil, nil
}
func (m *mockDiscordClient) UpdateWatchingStatus(_ string) error { return nil }
func (m *mockDiscordClient) ChannelWebhooks(_ string) ([]discord.Webhook, error) {
	return nil, nil
}
func (m *mockDiscordClient) CreateWebhook(_, _, _ string) (discord.Webhook, error) {
	return discord.Webhook{}, nil
}
func (m *mockDiscordClient) ExecuteWebhook(_ discord.Webhook, _ discord.WebhookMessage) error {
	return nil
}
func (m *mockDiscordClient) RegisterMessageHandler(_ func(discord.MessageEvent))           {}
func (m *mockDiscordClient) RegisterSlashCommandHandler(_ func(discord.SlashCommandEvent)) {}
func (m *mockDiscordClient) RegisterComponentHandler(_ func(discord.ComponentEvent))       {}
func (m *mockDiscordClient) RegisterModalSubmitHandler(_ func(discord.ModalSubmitEvent))   {}
func (m *mockDiscordClient) RegisterMemberHandler(_ func(discord.MemberEvent))             {}
func (m *mockDiscordClient) UpsertGuildSlashCommands(_ string, _ []discord.SlashCommandDefinition) error {
	return nil
}

func (m *mockDiscordClient) files() []discord.FileMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]discord.FileMessage(nil), m.fileCalls...)
}

func (m *mockDiscordClient) channelMessages(channelID string) []discord.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []discord.Message
	for _, c := range m.channelCalls {
		if c.target == channelID {
			out = append(out, c.msg)
		}
	}
	return out
}

func (m *mockDiscordClient) attemptedDMs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dmAttempts
}

func (m *mockDiscordClient) directMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.dmCalls...)
}

type mockInteraction struct {
	mu        sync.Mutex
	replies   []discord.Message
	edits     []discord.Message
	updates   []discord.Message
	followUps []discord.Message
	modals    []discord.Modal
	deferred  bool
	panics    map[string]bool
}

func (i *mockInteraction) Reply(msg discord.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.replies = append(i.replies, msg)
	return nil
}

func (i *mockInteraction) Defer(_ bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deferred = true
	return nil
}

func (i *mockInteraction) EditReply(msg discord.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.edits = append(i.edits, msg)
	return nil
}

func (i *mockInteraction) FollowUp(msg discord.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.followUps = append(i.followUps, msg)
	return nil
}

func (i *mockInteraction) Update(msg discord.Message) error {
	if i.panics["Update"] {
		panic("update failed")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.updates = append(i.updates, msg)
	return nil
}

func (i *mockInteraction) ShowModal(modal discord.Modal) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.modals = append(i.modals, modal)
	return nil
}

func (i *mockInteraction) Responded() bool { return true }

func (i *mockInteraction) lastReply() discord.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.replies) == 0 {
		return discord.Message{}
	}
	return i.replies[len(i.replies)-1]
}

func (i *mockInteraction) lastEdit() discord.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.edits) == 0 {
		return discord.Message{}
	}
	return i.edits[len(i.edits)-1]
}

type stubExtractor struct {
	rec     extraction.Record
	err     error
	release chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, _ string) (extraction.Record, string, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return extraction.Record{}, "", ctx.Err()
		}
	}
	return s.rec, s.rec.JSON(), s.err
}

type stubBlacklist struct {
	hits map[string]bool
	err  error
}

func (s *stubBlacklist) IsBlacklisted(_ context.Context, category blacklist.Category, value string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.hits[string(category)+"/"+value], nil
}

type stubIdentity struct {
	missing map[string]bool
}

func (s *stubIdentity) Exists(_ context.Context, id string, _ identity.Edition) bool {
	return !s.missing[id]
}

type stubMatcher struct {
	ids map[string]string
	err error
}

func (s *stubMatcher) Match(_ context.Context, _ []string) (map[string]string, error) {
	return s.ids, s.err
}

type testDeps struct {
	discord   *mockDiscordClient
	extractor *stubExtractor
	blacklist *stubBlacklist
	identity  *stubIdentity
	matcher   *stubMatcher
}

var testNow = time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

func newTestConfig() *config.Config {
	return &config.Config{
		TicketCategoryID:        "cat-1",
		TriggerMarker:           "[入国審査]",
		AdminKeyword:            "!cas-status",
		LogChannelID:            "log-1",
		PublishChannelID:        "pub-1",
		DebugPublishChannelID:   "debug-pub-1",
		SessionIdleTimeoutMin:   10,
		SessionSweepIntervalSec: 60,
		ValidationTimeoutSec:    60,
		JoinerMaxWaitHours:      72,
		MaxStayDays:             31,
		TranscriptTimezone:      "Asia/Tokyo",
	}
}

func completeRecord() extraction.Record {
	return extraction.Record{
		MCID:    "Steve",
		Nation:  "Testland",
		Purpose: "観光",
		Start:   "2026-03-01 12:00",
		End:     "2026-03-10 12:00",
	}
}

func newTestManager(t *testing.T, cfg *config.Config) (*Manager, *testDeps) {
	t.Helper()
	deps := &testDeps{
		discord:   &mockDiscordClient{},
		extractor: &stubExtractor{rec: completeRecord()},
		blacklist: &stubBlacklist{hits: map[string]bool{}},
		identity:  &stubIdentity{missing: map[string]bool{}},
		matcher:   &stubMatcher{},
	}
	m := NewManager(cfg, config.NewDebugSwitch(false), deps.discord, deps.extractor, deps.blacklist, deps.identity, deps.matcher)
	m.now = func() time.Time { return testNow }
	t.Cleanup(m.Stop)
	return m, deps
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition was not met before timeout")
}

func triggerEvent() discord.MessageEvent {
	return discord.MessageEvent{
		ChannelID:       "ch-1",
		ParentChannelID: "cat-1",
		AuthorID:        "u-1",
		Content:         "<@bot-1> [入国審査] 申請します",
		MentionsBot:     true,
	}
}

func onlySessionID(t *testing.T, m *Manager) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) != 1 {
		t.Fatalf("expected exactly one session, got %d", len(m.sessions))
	}
	for id := range m.sessions {
		return id
	}
	return ""
}

func sessionStep(m *Manager, id string) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.Step
	}
	return ""
}

func press(m *Manager, customID, userID string, values ...string) *mockInteraction {
	in := &mockInteraction{}
	m.HandleComponent(discord.ComponentEvent{ChannelID: "ch-1", UserID: userID, CustomID: customID, Values: values, Interaction: in})
	return in
}

func validForm() map[string]string {
	return map[string]string{
		fieldMCID:       "Steve",
		fieldNation:     "Testland",
		fieldPeriod:     "観光で10日間",
		fieldCompanions: "",
		fieldJoiners:    "",
	}
}

// submitApplication drives a fresh session up to modal submission and returns the modal interaction.
func submitApplication(t *testing.T, m *Manager, fields map[string]string) (string, *mockInteraction) {
	t.Helper()
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)
	press(m, Token{Kind: KindStart, SessionID: id}.String(), "u-1")
	press(m, Token{Kind: KindEdition, SessionID: id}.String(), "u-1", "java")
	in := &mockInteraction{}
	if !m.HandleModalSubmit(discord.ModalSubmitEvent{ChannelID: "ch-1", UserID: "u-1", CustomID: Token{Kind: KindForm, SessionID: id}.String(), Fields: fields, Interaction: in}) {
		t.Fatal("expected modal to be handled")
	}
	return id, in
}

func waitTranscript(t *testing.T, deps *testDeps) discord.FileMessage {
	t.Helper()
	waitUntil(t, 3*time.Second, func() bool { return len(deps.discord.files()) > 0 })
	return deps.discord.files()[0]
}

func TestHandleMessage_StartsSessionOnTrigger(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())

	m.HandleMessage(triggerEvent())

	id := onlySessionID(t, m)
	if !strings.HasPrefix(id, "ch-1-u-1-") {
		t.Fatalf("unexpected session id: %s", id)
	}
	if sessionStep(m, id) != StepIntro {
		t.Fatalf("unexpected step: %s", sessionStep(m, id))
	}
	sent := deps.discord.channelMessages("ch-1")
	if len(sent) != 1 || len(sent[0].Components) != 1 || len(sent[0].Components[0].Buttons) != 2 {
		t.Fatalf("expected intro with two buttons, got %+v", sent)
	}
	if got := sent[0].Components[0].Buttons[0].CustomID; got != (Token{Kind: KindStart, SessionID: id}).String() {
		t.Fatalf("unexpected start button id: %s", got)
	}
}

func TestHandleMessage_IgnoresNonTriggers(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())

	bot := triggerEvent()
	bot.AuthorIsBot = true
	otherCategory := triggerEvent()
	otherCategory.ParentChannelID = "cat-2"
	noMarker := triggerEvent()
	noMarker.Content = "<@bot-1> こんにちは"
	noMention := triggerEvent()
	noMention.MentionsBot = false

	for _, ev := range []discord.MessageEvent{bot, otherCategory, noMarker, noMention} {
		m.HandleMessage(ev)
	}
	if got := m.SessionCount(); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
	if got := len(deps.discord.channelMessages("ch-1")); got != 0 {
		t.Fatalf("expected no messages, got %d", got)
	}
}

func TestHandleMessage_AdminKeywordReportsOpenSessions(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())

	m.HandleMessage(discord.MessageEvent{ChannelID: "admin-1", AuthorID: "u-9", Content: "  !cas-status  "})

	sent := deps.discord.channelMessages("admin-1")
	if len(sent) != 1 || len(sent[0].Embeds) != 1 {
		t.Fatalf("expected one admin report, got %+v", sent)
	}
	if got := sent[0].Embeds[0].Fields[0].Value; got != "1" {
		t.Fatalf("unexpected open session count: %s", got)
	}
}

func TestHandleComponent_IgnoresForeignCustomIDs(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())
	if m.HandleComponent(discord.ComponentEvent{CustomID: "rolepost-choose", Interaction: &mockInteraction{}}) {
		t.Fatal("expected foreign custom id to be left unhandled")
	}
}

func TestHandleComponent_StartShowsEditionSelect(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)

	in := press(m, Token{Kind: KindStart, SessionID: id}.String(), "u-1")

	if sessionStep(m, id) != StepSelectVersion {
		t.Fatalf("unexpected step: %s", sessionStep(m, id))
	}
	if len(in.updates) != 1 || in.updates[0].Components[0].Select == nil {
		t.Fatalf("expected edition select update, got %+v", in.updates)
	}
}

func TestHandleComponent_MissingSession(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())

	in := press(m, Token{Kind: KindStart, SessionID: "gone"}.String(), "u-1")
	if got := in.lastReply(); got.Content != messageSessionMissingButton || !got.Ephemeral {
		t.Fatalf("unexpected reply: %+v", got)
	}

	in = press(m, Token{Kind: KindEdition, SessionID: "gone"}.String(), "u-1", "java")
	if got := in.lastReply(); got.Content != messageSessionMissing {
		t.Fatalf("unexpected reply: %+v", got)
	}
}

func TestHandleComponent_RejectsOutOfOrderStep(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)

	in := press(m, Token{Kind: KindEdition, SessionID: id}.String(), "u-1", "java")

	if got := in.lastReply(); got.Content != messageUnsupported {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if sessionStep(m, id) != StepIntro {
		t.Fatalf("step must not move: %s", sessionStep(m, id))
	}
}

func TestHandleComponent_EditionOpensModal(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)
	press(m, Token{Kind: KindStart, SessionID: id}.String(), "u-1")

	in := press(m, Token{Kind: KindEdition, SessionID: id}.String(), "u-1", "bedrock")

	if len(in.modals) != 1 || in.modals[0].CustomID != (Token{Kind: KindForm, SessionID: id}).String() {
		t.Fatalf("expected application modal, got %+v", in.modals)
	}
	if len(in.modals[0].Inputs) != 5 {
		t.Fatalf("expected five inputs, got %d", len(in.modals[0].Inputs))
	}
	if sessionStep(m, id) != StepModalSubmitted {
		t.Fatalf("unexpected step: %s", sessionStep(m, id))
	}
}

func TestCancel_EndsSessionAndSendsTranscript(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)

	in := press(m, Token{Kind: KindCancel, SessionID: id}.String(), "u-1")

	if len(in.updates) != 1 || in.updates[0].Content != messageCancelled || len(in.updates[0].Components) != 0 {
		t.Fatalf("unexpected cancel update: %+v", in.updates)
	}
	if m.SessionCount() != 0 {
		t.Fatal("expected session to be removed")
	}
	file := waitTranscript(t, deps)
	if file.ChannelID != "log-1" || file.Filename != "ticket-ch-1-一時入国審査.txt" {
		t.Fatalf("unexpected transcript target: %+v", file)
	}
	body := string(file.FileBody)
	for _, want := range []string{"セッション開始", "ユーザーが途中キャンセル", "セッション終了: キャンセル"} {
		if !strings.Contains(body, want) {
			t.Fatalf("transcript missing %q:\n%s", want, body)
		}
	}
	if !strings.HasPrefix(body, "[2026/03/01 12:00:00] ") {
		t.Fatalf("expected JST timestamps, got:\n%s", body)
	}

	again := press(m, Token{Kind: KindCancel, SessionID: id}.String(), "u-1")
	if got := again.lastReply(); got.Content != messageSessionMissingButton {
		t.Fatalf("unexpected reply after end: %+v", got)
	}
}

func TestModalSubmit_ApprovesAndPublishes(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())

	_, in := submitApplication(t, m, validForm())

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	if !in.deferred {
		t.Fatal("expected modal reply to be deferred")
	}
	last := in.lastEdit()
	if len(last.Embeds) != 1 || last.Embeds[0].Title != approvalTitle {
		t.Fatalf("expected approval embed, got %+v", last)
	}
	for _, f := range last.Embeds[0].Fields {
		if f.Name == "国籍" {
			t.Fatal("direct approval must not carry the nationality field")
		}
	}
	published := deps.discord.channelMessages("pub-1")
	if len(published) != 1 || published[0].Embeds[0].Title != publicationTitle {
		t.Fatalf("expected publication, got %+v", published)
	}
	if m.SessionCount() != 0 {
		t.Fatal("expected session to be removed")
	}
}

func TestModalSubmit_PublishesToDebugChannelWhenDebugOn(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	m.debug.Set(true)

	submitApplication(t, m, validForm())
	waitTranscript(t, deps)

	if got := len(deps.discord.channelMessages("debug-pub-1")); got != 1 {
		t.Fatalf("expected one debug publication, got %d", got)
	}
	if got := len(deps.discord.channelMessages("pub-1")); got != 0 {
		t.Fatalf("expected no public publication, got %d", got)
	}
}

func TestModalSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(d *testDeps)
		reason  string
	}{
		{
			name:    "nation blacklisted",
			prepare: func(d *testDeps) { d.blacklist.hits["Country/Testland"] = true },
			reason:  reasonNationBlacklisted,
		},
		{
			name:    "player blacklisted",
			prepare: func(d *testDeps) { d.blacklist.hits["Player/Steve"] = true },
			reason:  reasonPlayerBlacklisted,
		},
		{
			name:    "blacklist unavailable fails closed",
			prepare: func(d *testDeps) { d.blacklist.err = errors.New("sheet down") },
			reason:  reasonBlacklistUnavailable,
		},
		{
			name:    "applicant not found",
			prepare: func(d *testDeps) { d.identity.missing["Steve"] = true },
			reason:  reasonApplicantNotFound("Steve"),
		},
		{
			name:    "extraction failed",
			prepare: func(d *testDeps) { d.extractor.err = errors.New("bad json") },
			reason:  reasonParseFailed,
		},
		{
			name: "stay too long",
			prepare: func(d *testDeps) {
				d.extractor.rec.End = "2026-04-15 12:00"
			},
			reason: reasonStayTooLong,
		},
		{
			name: "stay too long with seconds",
			prepare: func(d *testDeps) {
				d.extractor.rec.Start = "2026-03-01 00:00:00"
				d.extractor.rec.End = "2026-05-01 00:00:00"
			},
			reason: reasonStayTooLong,
		},
		{
			name: "stay too long in iso form",
			prepare: func(d *testDeps) {
				d.extractor.rec.Start = "2026-03-01T00:00"
				d.extractor.rec.End = "2026-05-01T00:00"
			},
			reason: reasonStayTooLong,
		},
		{
			name: "unrecognized period",
			prepare: func(d *testDeps) {
				d.extractor.rec.End = "来月末"
			},
			reason: reasonParseFailed,
		},
		{
			name:    "missing fields",
			prepare: func(d *testDeps) { d.extractor.rec.Purpose = "" },
			reason:  reasonMissingFields,
		},
		{
			name: "companion nation mismatch",
			prepare: func(d *testDeps) {
				d.extractor.rec.Companions = []extraction.Companion{{MCID: "Alex", Nation: "Otherland"}}
			},
			reason: reasonCompanionNationMismatch("Alex"),
		},
		{
			name: "joiner transport failure",
			prepare: func(d *testDeps) {
				d.extractor.rec.Joiners = []string{"citizen1"}
				d.matcher.err = joiner.ErrTransport
			},
			reason: reasonJoinerTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, deps := newTestManager(t, newTestConfig())
			tt.prepare(deps)

			_, in := submitApplication(t, m, validForm())

			file := waitTranscript(t, deps)
			if !strings.Contains(file.Content, "却下") {
				t.Fatalf("unexpected transcript content: %s", file.Content)
			}
			last := in.lastEdit()
			if len(last.Embeds) != 1 || last.Embeds[0].Title != rejectionTitle {
				t.Fatalf("expected rejection embed, got %+v", last)
			}
			if !strings.Contains(last.Embeds[0].Description, tt.reason) {
				t.Fatalf("expected reason %q in %q", tt.reason, last.Embeds[0].Description)
			}
			if got := len(deps.discord.channelMessages("pub-1")); got != 0 {
				t.Fatalf("rejected application must not be published, got %d", got)
			}
		})
	}
}

func TestModalSubmit_RejectionEchoesInputWhenExtractionFailed(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.extractor.err = errors.New("bad json")

	_, in := submitApplication(t, m, validForm())
	waitTranscript(t, deps)

	desc := in.lastEdit().Embeds[0].Description
	if !strings.Contains(desc, "目的・期間: 観光で10日間") {
		t.Fatalf("expected raw input in details: %s", desc)
	}
}

func TestModalSubmit_TimesOut(t *testing.T) {
	cfg := newTestConfig()
	cfg.ValidationTimeoutSec = 1
	m, deps := newTestManager(t, cfg)
	deps.extractor.release = make(chan struct{})
	defer close(deps.extractor.release)

	_, in := submitApplication(t, m, validForm())

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "タイムアウト") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	if got := in.lastEdit().Content; got != messageValidationTimeout {
		t.Fatalf("unexpected final edit: %q", got)
	}
	if !strings.Contains(string(file.FileBody), "タイムアウトエラー") {
		t.Fatalf("transcript missing timeout line:\n%s", file.FileBody)
	}
}

func TestCancelDuringValidation_DiscardsLateResult(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.extractor.release = make(chan struct{})

	id, in := submitApplication(t, m, validForm())
	press(m, Token{Kind: KindCancel, SessionID: id}.String(), "u-1")
	close(deps.extractor.release)

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "キャンセル") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	m.Stop()
	if got := len(deps.discord.files()); got != 1 {
		t.Fatalf("expected exactly one transcript, got %d", got)
	}
	for _, e := range in.edits {
		if len(e.Embeds) > 0 {
			t.Fatalf("late result must not be shown: %+v", e)
		}
	}
}

// startJoinerWait submits an application naming citizen1..3 and returns once every
// resolved joiner has been messaged.
func startJoinerWait(t *testing.T, m *Manager, deps *testDeps, ids map[string]string) string {
	t.Helper()
	deps.extractor.rec.Joiners = []string{"citizen1", "citizen2", "citizen3"}
	deps.matcher.ids = ids
	id, in := submitApplication(t, m, validForm())
	waitUntil(t, 3*time.Second, func() bool {
		return in.lastEdit().Content == messageAwaitingJoiners && deps.discord.attemptedDMs() == len(ids)
	})
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatalf("unexpected step: %s", sessionStep(m, id))
	}
	return id
}

func TestJoiners_AllYesApproves(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100", "citizen2": "u-200"})

	dms := deps.discord.directMessages()
	if len(dms) != 2 || dms[0].target != "u-100" || dms[1].target != "u-200" {
		t.Fatalf("unexpected DMs: %+v", dms)
	}

	first := press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-100")
	if got := first.lastReply(); got.Content != messageJoinerThanks || !got.Ephemeral {
		t.Fatalf("unexpected joiner reply: %+v", got)
	}
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatal("session must wait for every joiner")
	}
	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-200")

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	waitUntil(t, time.Second, func() bool { return len(deps.discord.channelMessages("pub-1")) == 1 })
	notices := deps.discord.channelMessages("ch-1")
	last := notices[len(notices)-1]
	if last.Content != "<@u-1> " || last.Embeds[0].Title != approvalTitle {
		t.Fatalf("unexpected applicant notice: %+v", last)
	}
	if last.Embeds[0].Fields[1].Name != "国籍" {
		t.Fatalf("joiner approval must include nationality: %+v", last.Embeds[0].Fields)
	}
}

func TestJoiners_AnyNoRejects(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100", "citizen2": "u-200"})

	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "no"}.String(), "u-100")
	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-200")

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "却下") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	notices := deps.discord.channelMessages("ch-1")
	last := notices[len(notices)-1]
	if !strings.Contains(last.Embeds[0].Description, reasonJoinerDeclined) {
		t.Fatalf("unexpected rejection: %+v", last)
	}
	if got := len(deps.discord.channelMessages("pub-1")); got != 0 {
		t.Fatalf("rejected application must not be published, got %d", got)
	}
}

func TestJoiners_IgnoresAnswersFromOthers(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100"})

	in := press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "no"}.String(), "u-999")

	if got := in.lastReply(); got.Content != messageNotYourConfirmation {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatal("a stranger's answer must not end the session")
	}
}

func TestJoiners_UnreachableRejects(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.discord.dmErrByUser = map[string]error{"u-100": &discord.APIError{Code: discord.CodeCannotMessageUser}}
	deps.extractor.rec.Joiners = []string{"citizen1"}
	deps.matcher.ids = map[string]string{"citizen1": "u-100"}

	_, in := submitApplication(t, m, validForm())

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "却下") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	if !strings.Contains(in.lastEdit().Embeds[0].Description, reasonJoinerUnreachable) {
		t.Fatalf("unexpected rejection: %+v", in.lastEdit())
	}
}

func TestJoiners_UnknownNamesApproveDirectly(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.extractor.rec.Joiners = []string{"nobody"}
	deps.matcher.ids = map[string]string{}

	_, in := submitApplication(t, m, validForm())

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	if in.lastEdit().Embeds[0].Title != approvalTitle {
		t.Fatalf("expected direct approval, got %+v", in.lastEdit())
	}
	if got := len(deps.discord.directMessages()); got != 0 {
		t.Fatalf("expected no DMs, got %d", got)
	}
}

func TestSweep_EndsIdleSessions(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())

	m.sweep(testNow.Add(5 * time.Minute))
	if m.SessionCount() != 1 {
		t.Fatal("session must survive before the idle limit")
	}

	m.sweep(testNow.Add(11 * time.Minute))
	if m.SessionCount() != 0 {
		t.Fatal("expected idle session to be swept")
	}
	file := waitTranscript(t, deps)
	if !strings.Contains(string(file.FileBody), "セッション終了: タイムアウト") {
		t.Fatalf("unexpected transcript:\n%s", file.FileBody)
	}
	notices := deps.discord.channelMessages("ch-1")
	if last := notices[len(notices)-1]; last.Content != "<@u-1> "+messageIdleTimeout {
		t.Fatalf("expected a timeout notice in the ticket channel, got %+v", last)
	}
}

func TestSweep_JoinerWaitUsesItsOwnBound(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100"})

	m.sweep(testNow.Add(time.Hour))
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatal("waiting session must not hit the idle limit")
	}

	m.sweep(testNow.Add(73 * time.Hour))
	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "却下") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	waitUntil(t, time.Second, func() bool {
		notices := deps.discord.channelMessages("ch-1")
		last := notices[len(notices)-1]
		return len(last.Embeds) == 1 && strings.Contains(last.Embeds[0].Description, reasonJoinerExpired)
	})
}

func TestJoiners_CompletesOnlyWhenEveryResolvedJoinerAnswers(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100", "citizen2": "u-200", "citizen3": "u-300"})

	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-100")
	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-300")
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatal("two of three answers must not complete the confirmation")
	}
	if got := len(deps.discord.files()); got != 0 {
		t.Fatalf("expected no transcript yet, got %d", got)
	}

	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-200")
	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
}

func TestJoiners_FailedDMStillCountsTowardCompletion(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.discord.dmErrByUser = map[string]error{"u-200": &discord.APIError{Code: discord.CodeCannotMessageUser}}
	id := startJoinerWait(t, m, deps, map[string]string{"citizen1": "u-100", "citizen2": "u-200"})

	press(m, Token{Kind: KindJoiner, SessionID: id, Extra: "yes"}.String(), "u-100")
	if sessionStep(m, id) != StepWaitingForJoiners {
		t.Fatal("an unreachable joiner must not be waived")
	}
	if got := len(deps.discord.channelMessages("pub-1")); got != 0 {
		t.Fatalf("application must not be published, got %d", got)
	}

	m.sweep(testNow.Add(73 * time.Hour))
	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "却下") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
}

func TestJoiners_AnswerWhileDMsAreStillGoingOut(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	var early *mockInteraction
	var sessionID string
	deps.discord.onDM = func(userID string) {
		if userID == "u-200" {
			early = press(m, Token{Kind: KindJoiner, SessionID: sessionID, Extra: "yes"}.String(), "u-100")
		}
	}
	m.HandleMessage(triggerEvent())
	sessionID = onlySessionID(t, m)
	deps.extractor.rec.Joiners = []string{"citizen1", "citizen2"}
	deps.matcher.ids = map[string]string{"citizen1": "u-100", "citizen2": "u-200"}
	press(m, Token{Kind: KindStart, SessionID: sessionID}.String(), "u-1")
	press(m, Token{Kind: KindEdition, SessionID: sessionID}.String(), "u-1", "java")
	m.HandleModalSubmit(discord.ModalSubmitEvent{
		ChannelID: "ch-1", UserID: "u-1", CustomID: Token{Kind: KindForm, SessionID: sessionID}.String(),
		Fields: validForm(), Interaction: &mockInteraction{},
	})

	waitUntil(t, 3*time.Second, func() bool { return deps.discord.attemptedDMs() == 2 })
	if early == nil {
		t.Fatal("expected the first joiner to answer during dispatch")
	}
	if got := early.lastReply(); got.Content != messageJoinerThanks {
		t.Fatalf("early answer was refused: %+v", got)
	}

	press(m, Token{Kind: KindJoiner, SessionID: sessionID, Extra: "yes"}.String(), "u-200")
	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
}

func TestHandleComponent_RecoversFromPanic(t *testing.T) {
	m, _ := newTestManager(t, newTestConfig())
	m.HandleMessage(triggerEvent())
	id := onlySessionID(t, m)

	in := &mockInteraction{panics: map[string]bool{"Update": true}}
	handled := m.HandleComponent(discord.ComponentEvent{ChannelID: "ch-1", UserID: "u-1", CustomID: Token{Kind: KindStart, SessionID: id}.String(), Interaction: in})

	if !handled {
		t.Fatal("expected the component to be reported as handled")
	}
	if len(in.followUps) != 1 || in.followUps[0].Embeds[0].Description != messageUnexpectedError {
		t.Fatalf("expected generic error follow-up, got %+v", in.followUps)
	}
}

func TestFinish_TranscriptSurvivesPanickingNotice(t *testing.T) {
	m, deps := newTestManager(t, newTestConfig())
	deps.discord.panicChannel = "pub-1"

	submitApplication(t, m, validForm())

	file := waitTranscript(t, deps)
	if !strings.Contains(file.Content, "承認") {
		t.Fatalf("unexpected transcript content: %s", file.Content)
	}
	notices := deps.discord.channelMessages("ch-1")
	last := notices[len(notices)-1]
	if len(last.Embeds) != 1 || last.Embeds[0].Description != messageUnexpectedError {
		t.Fatalf("expected generic error in the ticket channel, got %+v", last)
	}
}
