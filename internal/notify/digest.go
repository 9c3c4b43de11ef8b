package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/crewdeck/crewdeck/internal/chat"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// BoardDigest holds pending-approval metrics for one board.
type BoardDigest struct {
	BoardID   string
	BoardName string
	Pending   int
	Oldest    time.Time
}

// BuildPendingDigest summarizes boards that still have pending approvals.
// Returns nil when nothing is pending.
func BuildPendingDigest(db *gorm.DB) ([]BoardDigest, error) {
	type row struct {
		BoardID string
		Name    string
		Pending int
		Oldest  time.Time
	}
	var rows []row
	if err := db.Table("approvals").
		Select("approvals.board_id AS board_id, boards.name AS name, count(*) AS pending, min(approvals.created_at) AS oldest").
		Joins("JOIN boards ON boards.id = approvals.board_id").
		Where("approvals.status = ?", models.ApprovalPending).
		Group("approvals.board_id, boards.name").
		Order("pending DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: build digest: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	digests := make([]BoardDigest, len(rows))
	for i, r := range rows {
		digests[i] = BoardDigest{BoardID: r.BoardID, BoardName: r.Name, Pending: r.Pending, Oldest: r.Oldest}
	}
	return digests, nil
}

// DigestEvent formats board digests as one chat event.
func DigestEvent(digests []BoardDigest) chat.Event {
	var b strings.Builder
	total := 0
	for _, d := range digests {
		total += d.Pending
		fmt.Fprintf(&b, "%s: %d pending (oldest %s)\n",
			d.BoardName, d.Pending, d.Oldest.UTC().Format("2006-01-02 15:04"))
	}
	return chat.Event{
		Title:    fmt.Sprintf("Pending approvals digest: %d awaiting decision", total),
		Body:     strings.TrimRight(b.String(), "\n"),
		Severity: "info",
	}
}

// RunDigestLoop posts the pending-approvals digest on the given cron
// schedule until ctx is cancelled. A blank or unparseable expression
// disables the loop.
func (n *Notifier) RunDigestLoop(ctx context.Context, cronExpr string) {
	if cronExpr == "" || len(n.Chat) == 0 {
		return
	}
	for {
		wait := nextCronDuration(cronExpr)
		if wait == 0 {
			log.Printf("notify: digest disabled, bad cron expression %q", cronExpr)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		digests, err := BuildPendingDigest(n.DB)
		if err != nil {
			log.Printf("notify: digest failed: %v", err)
			continue
		}
		if len(digests) == 0 {
			continue
		}
		chat.Broadcast(ctx, n.Chat, DigestEvent(digests))
	}
}
