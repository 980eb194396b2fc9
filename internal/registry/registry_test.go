package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memberLister struct {
	discord.Client
	members []discord.Member
	err     error
}

func (m *memberLister) ListGuildMembers(context.Context, string) ([]discord.Member, error) {
	return m.members, m.err
}

type recordingLedger struct {
	mu      sync.Mutex
	records []MemberRecord
	failFor map[string]bool
}

func (l *recordingLedger) UpsertMember(_ context.Context, r MemberRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failFor[r.DiscordID] {
		return errors.New("ledger down")
	}
	l.records = append(l.records, r)
	return nil
}

func (l *recordingLedger) snapshot() []MemberRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MemberRecord(nil), l.records...)
}

func TestInferGroup(t *testing.T) {
	assert.Equal(t, GroupDiplomat, InferGroup([]string{"r1", "dip"}, []string{"dip"}))
	assert.Equal(t, GroupCitizen, InferGroup([]string{"r1"}, []string{"dip"}))
	assert.Equal(t, GroupCitizen, InferGroup(nil, nil))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "情報なし"},
		{in: "", want: "情報なし"},
		{in: "taro", want: "taro"},
		{in: `["株式会社A","B商会"]`, want: "株式会社A, B商会"},
		{in: `[]`, want: "情報なし"},
		{in: `[broken`, want: "[broken"},
		{in: []any{"x", float64(2)}, want: "x, 2"},
		{in: 1.5, want: "1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in, "情報なし"), "%v", tt.in)
	}
}

func TestFullSync_SkipsBotsAndContinuesOnFailure(t *testing.T) {
	lister := &memberLister{members: []discord.Member{
		{UserID: "1", Username: "alice", DisplayName: "Alice", RoleIDs: []string{"dip"}},
		{UserID: "2", Username: "casbot", IsBot: true},
		{UserID: "3", Username: "bob", DisplayName: "Bob"},
		{UserID: "4", Username: "carol", DisplayName: "Carol"},
	}}
	ledger := &recordingLedger{failFor: map[string]bool{"3": true}}
	s := NewSyncer("guild-1", []string{"dip"}, lister, ledger, time.Millisecond)

	require.NoError(t, s.FullSync(context.Background()))

	records := ledger.snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, MemberRecord{
		GuildID:     "guild-1",
		DiscordID:   "1",
		DiscordName: "alice",
		DisplayName: "Alice",
		Group:       GroupDiplomat,
		Roles:       []string{"dip"},
	}, records[0])
	assert.Equal(t, "4", records[1].DiscordID)
	assert.Equal(t, []string{}, records[1].Roles)
	assert.Equal(t, GroupCitizen, records[1].Group)
}

func TestFullSync_ListError(t *testing.T) {
	s := NewSyncer("guild-1", nil, &memberLister{err: errors.New("gateway")}, &recordingLedger{}, time.Millisecond)
	assert.Error(t, s.FullSync(context.Background()))
}

func TestFullSync_StopsOnCanceledContext(t *testing.T) {
	lister := &memberLister{members: []discord.Member{{UserID: "1"}, {UserID: "2"}}}
	s := NewSyncer("guild-1", nil, lister, &recordingLedger{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.FullSync(ctx))
}

func TestHandleMemberEvent_IgnoresOtherGuildsAndBots(t *testing.T) {
	ledger := &recordingLedger{}
	s := NewSyncer("guild-1", nil, &memberLister{}, ledger, time.Millisecond)

	s.HandleMemberEvent(discord.MemberEvent{GuildID: "other", Member: discord.Member{UserID: "1"}})
	s.HandleMemberEvent(discord.MemberEvent{GuildID: "guild-1", Member: discord.Member{UserID: "2", IsBot: true}})
	s.HandleMemberEvent(discord.MemberEvent{GuildID: "guild-1", Member: discord.Member{UserID: "3"}})

	require.Eventually(t, func() bool { return len(ledger.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "3", ledger.snapshot()[0].DiscordID)
}
