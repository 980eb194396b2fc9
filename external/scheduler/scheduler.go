package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	presenceTimeLayout = "2006/01/02 15:04:05"
	memberSyncTimeout  = 2 * time.Hour
)

type StatusUpdater interface {
	UpdateWatchingStatus(text string) error
}

type MemberSyncer interface {
	FullSync(ctx context.Context) error
}

type Options struct {
	PresenceSpec   string
	MemberSyncSpec string
	Location       *time.Location
}

// Scheduler runs the presence refresh and the periodic member ledger sync.
type Scheduler struct {
	cron    *cron.Cron
	status  StatusUpdater
	syncer  MemberSyncer
	loc     *time.Location
	now     func() time.Time
	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(opt Options, status StatusUpdater, syncer MemberSyncer) (*Scheduler, error) {
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		status:  status,
		syncer:  syncer,
		loc:     loc,
		now:     time.Now,
		baseCtx: ctx,
		cancel:  cancel,
	}
	if _, err := c.AddFunc(opt.PresenceSpec, s.RefreshPresence); err != nil {
		cancel()
		return nil, err
	}
	if _, err := c.AddFunc(opt.MemberSyncSpec, s.syncMembers); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels a running member sync and waits for jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) RefreshPresence() {
	text := PresenceText(s.now().In(s.loc))
	if err := s.status.UpdateWatchingStatus(text); err != nil {
		slog.Warn("failed to update presence", "error", err)
		return
	}
	slog.Debug("presence updated", "text", text)
}

func (s *Scheduler) syncMembers() {
	ctx, cancel := context.WithTimeout(s.baseCtx, memberSyncTimeout)
	defer cancel()
	if err := s.syncer.FullSync(ctx); err != nil {
		slog.Error("scheduled member sync failed", "error", err)
	}
}

func PresenceText(t time.Time) string {
	return "コムザール行政システム(CAS) 稼働中 | 診断:" + t.Format(presenceTimeLayout)
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
