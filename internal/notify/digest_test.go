package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/models"
)

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("bogus"); d != 0 {
		t.Errorf("nextCronDuration(bogus) = %v, want 0", d)
	}
	d := nextCronDuration("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("nextCronDuration(every minute) = %v, want (0, 1m]", d)
	}
}

func TestBuildPendingDigest(t *testing.T) {
	db := testDB(t)
	db.Create(&models.Board{ID: "b1", Name: "Launch"})
	db.Create(&models.Board{ID: "b2", Name: "Ops"})
	now := time.Now().UTC()
	db.Create(&models.Approval{ID: "a1", BoardID: "b1", ActionType: "x", Status: models.ApprovalPending, CreatedAt: now.Add(-2 * time.Hour)})
	db.Create(&models.Approval{ID: "a2", BoardID: "b1", ActionType: "x", Status: models.ApprovalPending, CreatedAt: now})
	db.Create(&models.Approval{ID: "a3", BoardID: "b1", ActionType: "x", Status: models.ApprovalApproved, CreatedAt: now, ResolvedAt: &now})
	db.Create(&models.Approval{ID: "a4", BoardID: "b2", ActionType: "x", Status: models.ApprovalPending, CreatedAt: now})

	digests, err := BuildPendingDigest(db)
	if err != nil {
		t.Fatalf("BuildPendingDigest: %v", err)
	}
	if len(digests) != 2 {
		t.Fatalf("digests = %d, want 2", len(digests))
	}
	// Ordered by pending count descending.
	if digests[0].BoardName != "Launch" || digests[0].Pending != 2 {
		t.Errorf("digests[0] = %+v, want Launch with 2 pending", digests[0])
	}
	if digests[1].BoardName != "Ops" || digests[1].Pending != 1 {
		t.Errorf("digests[1] = %+v, want Ops with 1 pending", digests[1])
	}
}

func TestBuildPendingDigest_Empty(t *testing.T) {
	db := testDB(t)
	digests, err := BuildPendingDigest(db)
	if err != nil {
		t.Fatalf("BuildPendingDigest: %v", err)
	}
	if digests != nil {
		t.Errorf("digests = %v, want nil when nothing pending", digests)
	}
}

func TestDigestEvent(t *testing.T) {
	evt := DigestEvent([]BoardDigest{
		{BoardName: "Launch", Pending: 2, Oldest: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{BoardName: "Ops", Pending: 1, Oldest: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
	})
	if !strings.Contains(evt.Title, "3 awaiting decision") {
		t.Errorf("title = %q, want total of 3", evt.Title)
	}
	if !strings.Contains(evt.Body, "Launch: 2 pending (oldest 2026-03-01 09:30)") {
		t.Errorf("body = %q", evt.Body)
	}
	if evt.Severity != "info" {
		t.Errorf("severity = %q, want info", evt.Severity)
	}
}
