package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comzer-gov/casbot/internal/discord"
	"golang.org/x/sync/errgroup"
)

const (
	statusTitle      = "CAS自己診断プログラムを実行しました"
	statusColor      = 0x2ecc71
	statusTimeLayout = "2006/01/02 15:04:05"
)

func (r *Router) handleStatus(ev discord.SlashCommandEvent) {
	if !r.deferReply(ev, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	lines := r.runProbes(ctx)
	description := fmt.Sprintf("✅ 最終診断時刻：%s\n%s", r.now().In(r.opt.Location).Format(statusTimeLayout), strings.Join(lines, "\n"))
	r.editReply(ev, discord.Message{
		Embeds:    []discord.Embed{{Title: statusTitle, Description: description, Color: statusColor}},
		Ephemeral: true,
	})
}

// runProbes checks every dependency concurrently and renders one line per probe in order.
func (r *Router) runProbes(ctx context.Context) []string {
	lines := make([]string, len(r.probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.probes {
		g.Go(func() error {
			if err := p.Check(gctx); err != nil {
				slog.Warn("status probe failed", "probe", p.Label, "error", err)
				lines[i] = fmt.Sprintf("⛔ %s：連携失敗", p.Label)
				return nil
			}
			lines[i] = fmt.Sprintf("✅ %s：連携中", p.Label)
			return nil
		})
	}
	_ = g.Wait()
	return lines
}
