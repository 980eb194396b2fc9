package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Messenger is the part of the Discord client the queue needs.
type Messenger interface {
	SendDirectMessage(userID string, msg discord.Message) error
	IsGuildMember(guildID, userID string) bool
}

type Job struct {
	ID        string
	RequestID string
	DiscordID string
	Message   string
}

// Queue delivers notices one at a time, paced by interval.
type Queue struct {
	messenger Messenger
	guildID   string
	limiter   *rate.Limiter

	mu      sync.Mutex
	pending []Job
	wake    chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewQueue(messenger Messenger, guildID string, interval time.Duration) *Queue {
	return &Queue{
		messenger: messenger,
		guildID:   guildID,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		wake:      make(chan struct{}, 1),
		cancel:    func() {},
	}
}

func (q *Queue) Enqueue(r Request) Job {
	job := Job{
		ID:        uuid.NewString(),
		RequestID: r.RequestID,
		DiscordID: r.DiscordID,
		Message:   r.Message(),
	}
	q.mu.Lock()
	q.pending = append(q.pending, job)
	depth := len(q.pending)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	slog.Info("notice queued", "job_id", job.ID, "request_id", job.RequestID, "discord_id", job.DiscordID, "depth", depth)
	return job
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start runs the single consumer until ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		q.wg.Add(1)
		go q.run(ctx)
	})
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
		if n := q.Len(); n > 0 {
			slog.Warn("notice queue stopped with undelivered jobs", "pending", n)
		}
	})
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		if err := q.limiter.Wait(ctx); err != nil {
			q.requeue(job)
			return
		}
		q.deliver(job)
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, true
}

func (q *Queue) requeue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append([]Job{job}, q.pending...)
}

func (q *Queue) deliver(job Job) {
	err := q.messenger.SendDirectMessage(job.DiscordID, discord.Message{Content: job.Message})
	if err == nil {
		slog.Info("notice delivered", "job_id", job.ID, "request_id", job.RequestID, "discord_id", job.DiscordID)
		return
	}
	shared := false
	if discord.ErrorCode(err) == discord.CodeCannotMessageUser {
		shared = q.messenger.IsGuildMember(q.guildID, job.DiscordID)
	}
	slog.Error("notice delivery failed",
		"job_id", job.ID,
		"request_id", job.RequestID,
		"discord_id", job.DiscordID,
		"error_code", discord.ErrorCode(err),
		"detail", Classify(err, shared),
		"error", err,
	)
}

// Classify describes a delivery failure for the operator log.
func Classify(err error, sharesGuild bool) string {
	switch discord.ErrorCode(err) {
	case discord.CodeCannotMessageUser:
		if sharesGuild {
			return "失敗(50007): ユーザーがDMを閉じているか、Botがブロックされています。"
		}
		return "失敗(50007): 共通サーバーにユーザーがいないため送信できません。"
	case discord.CodeUnknownUser:
		return "失敗(10013): ユーザーIDが正しくないか、存在しません。"
	case discord.CodeMissingAccess:
		return "失敗(50001): Botにメッセージ送信権限がありません。"
	default:
		return fmt.Sprintf("失敗: %v", err)
	}
}
