package tasklink

import (
	"reflect"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Board{},
		&models.Task{},
		&models.Approval{},
		&models.ApprovalTaskLink{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func strptr(s string) *string { return &s }

func seedApproval(t *testing.T, db *gorm.DB, id, boardID, status string, taskID *string, linked ...string) {
	t.Helper()
	a := models.Approval{
		ID:         id,
		BoardID:    boardID,
		TaskID:     taskID,
		ActionType: "deploy",
		Status:     status,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("seed approval %s: %v", id, err)
	}
	if err := ReplaceLinks(db, id, linked); err != nil {
		t.Fatalf("seed links %s: %v", id, err)
	}
}

// --- Normalize ---

func TestNormalize_Sources(t *testing.T) {
	tests := []struct {
		name    string
		taskID  *string
		taskIDs []string
		payload map[string]any
		want    []string
	}{
		{
			name: "empty",
			want: []string{},
		},
		{
			name:   "legacy field only",
			taskID: strptr("t1"),
			want:   []string{"t1"},
		},
		{
			name:    "explicit list only",
			taskIDs: []string{"t1", "t2"},
			want:    []string{"t1", "t2"},
		},
		{
			name:    "legacy field leads explicit list",
			taskID:  strptr("t0"),
			taskIDs: []string{"t1", "t2"},
			want:    []string{"t0", "t1", "t2"},
		},
		{
			name:    "duplicates keep first-seen order",
			taskID:  strptr("t1"),
			taskIDs: []string{"t2", "t1", "t2"},
			want:    []string{"t1", "t2"},
		},
		{
			name:    "payload single id",
			payload: map[string]any{"task_id": "t3"},
			want:    []string{"t3"},
		},
		{
			name:    "payload id list",
			payload: map[string]any{"task_ids": []any{"t4", "t5"}},
			want:    []string{"t4", "t5"},
		},
		{
			name:    "payload string slice",
			payload: map[string]any{"task_ids": []string{"t4", "t5"}},
			want:    []string{"t4", "t5"},
		},
		{
			name:    "payload non-string entries ignored",
			payload: map[string]any{"task_id": 7, "task_ids": []any{1, "t6", nil}},
			want:    []string{"t6"},
		},
		{
			name:    "all sources merged",
			taskID:  strptr("t1"),
			taskIDs: []string{"t2"},
			payload: map[string]any{"task_id": "t3", "task_ids": []any{"t1", "t4"}},
			want:    []string{"t1", "t2", "t3", "t4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.taskID, tt.taskIDs, tt.payload)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- ReplaceLinks / LoadTaskIDs ---

func TestReplaceLinks_Idempotent(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, nil, "t1", "t2")

	// Same set again must leave links unchanged.
	if err := ReplaceLinks(db, "a1", []string{"t1", "t2"}); err != nil {
		t.Fatalf("ReplaceLinks second call: %v", err)
	}

	mapping, err := LoadTaskIDs(db, []string{"a1"})
	if err != nil {
		t.Fatalf("LoadTaskIDs: %v", err)
	}
	if got := mapping["a1"]; !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Errorf("links after repeat = %v, want [t1 t2]", got)
	}

	var count int64
	db.Model(&models.ApprovalTaskLink{}).Where("approval_id = ?", "a1").Count(&count)
	if count != 2 {
		t.Errorf("link rows = %d, want 2", count)
	}
}

func TestReplaceLinks_ReplacesSet(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, nil, "t1", "t2")

	if err := ReplaceLinks(db, "a1", []string{"t3"}); err != nil {
		t.Fatalf("ReplaceLinks: %v", err)
	}
	mapping, err := LoadTaskIDs(db, []string{"a1"})
	if err != nil {
		t.Fatalf("LoadTaskIDs: %v", err)
	}
	if got := mapping["a1"]; !reflect.DeepEqual(got, []string{"t3"}) {
		t.Errorf("links = %v, want [t3]", got)
	}
}

func TestLoadTaskIDs_PreservesCreationOrder(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, nil, "t9", "t1", "t5")

	mapping, err := LoadTaskIDs(db, []string{"a1"})
	if err != nil {
		t.Fatalf("LoadTaskIDs: %v", err)
	}
	if got := mapping["a1"]; !reflect.DeepEqual(got, []string{"t9", "t1", "t5"}) {
		t.Errorf("links = %v, want [t9 t1 t5]", got)
	}
}

func TestLoadTaskIDs_NoLinks(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, strptr("t1"))

	mapping, err := LoadTaskIDs(db, []string{"a1"})
	if err != nil {
		t.Fatalf("LoadTaskIDs: %v", err)
	}
	if _, ok := mapping["a1"]; ok {
		t.Errorf("expected no entry for link-less approval, got %v", mapping["a1"])
	}
}

// --- FindConflicts ---

func TestFindConflicts_LinkedPending(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, nil, "t1", "t2")

	conflicts, err := FindConflicts(db, "b1", []string{"t1", "t3"}, "")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts["t1"] != "a1" {
		t.Errorf("conflicts = %v, want map[t1:a1]", conflicts)
	}
}

func TestFindConflicts_IgnoresResolved(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalApproved, nil, "t1")

	conflicts, err := FindConflicts(db, "b1", []string{"t1"}, "")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", conflicts)
	}
}

func TestFindConflicts_IgnoresOtherBoard(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b2", models.ApprovalPending, nil, "t1")

	conflicts, err := FindConflicts(db, "b1", []string{"t1"}, "")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", conflicts)
	}
}

func TestFindConflicts_ExcludesSelf(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, nil, "t1")

	conflicts, err := FindConflicts(db, "b1", []string{"t1"}, "a1")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty when excluding self", conflicts)
	}
}

func TestFindConflicts_LegacyColumnOnly(t *testing.T) {
	db := testDB(t)
	// Pending approval with only the legacy task_id column, no link rows.
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, strptr("t1"))

	conflicts, err := FindConflicts(db, "b1", []string{"t1"}, "")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if conflicts["t1"] != "a1" {
		t.Errorf("conflicts = %v, want map[t1:a1]", conflicts)
	}
}

func TestFindConflicts_EmptyInput(t *testing.T) {
	db := testDB(t)
	conflicts, err := FindConflicts(db, "b1", nil, "")
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", conflicts)
	}
}

// --- LockForUpdate ---

func TestLockForUpdate_EmptyAndSQLite(t *testing.T) {
	db := testDB(t)
	if err := LockForUpdate(db, nil); err != nil {
		t.Errorf("LockForUpdate(empty) = %v, want nil", err)
	}
	// SQLite has no FOR UPDATE; must be a no-op, not an error.
	if err := LockForUpdate(db, []string{"t2", "t1"}); err != nil {
		t.Errorf("LockForUpdate(sqlite) = %v, want nil", err)
	}
}

// --- CountsForTasks ---

func TestCountsForTasks(t *testing.T) {
	db := testDB(t)
	seedApproval(t, db, "a1", "b1", models.ApprovalPending, strptr("t1"), "t1", "t2")
	seedApproval(t, db, "a2", "b1", models.ApprovalApproved, nil, "t1")
	seedApproval(t, db, "a3", "b1", models.ApprovalRejected, strptr("t2"))
	seedApproval(t, db, "a4", "b2", models.ApprovalPending, nil, "t1")

	counts, err := CountsForTasks(db, "b1", []string{"t1", "t2", "t3"})
	if err != nil {
		t.Fatalf("CountsForTasks: %v", err)
	}

	// a1 counts once for t1 despite appearing via both link and legacy column.
	if got := counts["t1"]; got.Total != 2 || got.Pending != 1 {
		t.Errorf("t1 counts = %+v, want {Total:2 Pending:1}", got)
	}
	if got := counts["t2"]; got.Total != 2 || got.Pending != 1 {
		t.Errorf("t2 counts = %+v, want {Total:2 Pending:1}", got)
	}
	if _, ok := counts["t3"]; ok {
		t.Errorf("t3 should have no counts entry, got %+v", counts["t3"])
	}
}
