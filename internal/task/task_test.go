package task

import (
	"testing"
	"time"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/testdb"
	"gorm.io/gorm"
)

func actor(u models.User) access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role, FullName: u.FullName}
}

func seedTask(t *testing.T, gdb *gorm.DB, projectID, assigneeID, creatorID uint, status string) models.Task {
	t.Helper()
	d := models.Defect{ProjectID: projectID, Title: "Defect", InitiatorID: creatorID, Status: models.DefectAssigned}
	if err := gdb.Create(&d).Error; err != nil {
		t.Fatalf("create defect: %v", err)
	}
	tk := models.Task{
		RelatedDefectID: d.ID,
		ProjectID:       projectID,
		Name:            d.Title,
		Status:          status,
		CreatorID:       creatorID,
		AssigneeID:      assigneeID,
	}
	if err := gdb.Create(&tk).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func TestValidStatus(t *testing.T) {
	for _, s := range models.TaskStatuses {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "Done", "closed", "Assigned"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

func TestChangeStatus_AssigneeMovesForward(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskNew)
	now := time.Now()

	for _, next := range []string{models.TaskInProgress, models.TaskInReview} {
		c, err := ChangeStatus(gdb, ChangeOpts{TaskID: tk.ID, Status: next, Actor: actor(f.Engineer)}, now)
		if err != nil {
			t.Fatalf("ChangeStatus(%s): %v", next, err)
		}
		if c.Task.Status != next {
			t.Errorf("Task.Status = %q, want %q", c.Task.Status, next)
		}
	}

	var reloaded models.Task
	gdb.First(&reloaded, tk.ID)
	if reloaded.Status != models.TaskInReview {
		t.Errorf("stored status = %q, want InReview", reloaded.Status)
	}
	if reloaded.ClosedAt != nil {
		t.Errorf("ClosedAt = %v, want nil", reloaded.ClosedAt)
	}
}

func TestChangeStatus_ReportsPreviousStatus(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskInProgress)

	c, err := ChangeStatus(gdb, ChangeOpts{TaskID: tk.ID, Status: models.TaskNew, Actor: actor(f.Engineer)}, time.Now())
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if c.From != models.TaskInProgress {
		t.Errorf("From = %q, want InProgress", c.From)
	}
}

func TestChangeStatus_SameStatusIsAllowed(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskInProgress)

	for _, a := range []access.Actor{actor(f.Engineer), actor(f.Manager)} {
		c, err := ChangeStatus(gdb, ChangeOpts{TaskID: tk.ID, Status: models.TaskInProgress, Actor: a}, time.Now())
		if err != nil {
			t.Fatalf("ChangeStatus as %s: %v", a.Role, err)
		}
		if c.From != models.TaskInProgress || c.Task.Status != models.TaskInProgress {
			t.Errorf("change = %s -> %s, want InProgress -> InProgress", c.From, c.Task.Status)
		}
	}
}

func TestChangeStatus_ManagerCloses(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskInReview)

	c, err := ChangeStatus(gdb, ChangeOpts{TaskID: tk.ID, Status: models.TaskClosed, Actor: actor(f.Manager)}, time.Now())
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if c.Task.ClosedAt == nil {
		t.Error("Task.ClosedAt not set")
	}

	var reloaded models.Task
	gdb.First(&reloaded, tk.ID)
	if reloaded.Status != models.TaskClosed || reloaded.ClosedAt == nil {
		t.Errorf("stored task = %q closed_at %v", reloaded.Status, reloaded.ClosedAt)
	}
}

func TestChangeStatus_Errors(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	open := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskInProgress)
	closed := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskClosed)

	tests := []struct {
		name string
		opts ChangeOpts
		want apperr.Kind
	}{
		{"unknown status", ChangeOpts{TaskID: open.ID, Status: "Done", Actor: actor(f.Engineer)}, apperr.Validation},
		{"engineer closes", ChangeOpts{TaskID: open.ID, Status: models.TaskClosed, Actor: actor(f.Engineer)}, apperr.Permission},
		{"other engineer", ChangeOpts{TaskID: open.ID, Status: models.TaskInReview, Actor: actor(f.Engineer2)}, apperr.Permission},
		{"customer", ChangeOpts{TaskID: open.ID, Status: models.TaskInReview, Actor: actor(f.Customer)}, apperr.Permission},
		{"missing task as engineer", ChangeOpts{TaskID: 999, Status: models.TaskInReview, Actor: actor(f.Engineer)}, apperr.Permission},
		{"missing task as manager", ChangeOpts{TaskID: 999, Status: models.TaskInReview, Actor: actor(f.Manager)}, apperr.NotFound},
		{"reopen closed", ChangeOpts{TaskID: closed.ID, Status: models.TaskInProgress, Actor: actor(f.Manager)}, apperr.Conflict},
		{"assignee on closed", ChangeOpts{TaskID: closed.ID, Status: models.TaskInProgress, Actor: actor(f.Engineer)}, apperr.Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChangeStatus(gdb, tt.opts, time.Now())
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("KindOf(err) = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}

	var reloaded models.Task
	gdb.First(&reloaded, open.ID)
	if reloaded.Status != models.TaskInProgress {
		t.Errorf("status after rejected changes = %q, want InProgress", reloaded.Status)
	}
}

func TestChangeStatus_StaleReadConflicts(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskNew)

	// Another writer moves the task between our read and our update.
	gdb.Callback().Update().Before("gorm:update").Register("test:race", func(tx *gorm.DB) {
		if tx.Statement.Table == "tasks" {
			tx.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Exec("UPDATE tasks SET status = ? WHERE id = ?", models.TaskInReview, tk.ID)
		}
	})
	t.Cleanup(func() { gdb.Callback().Update().Remove("test:race") })

	_, err := ChangeStatus(gdb, ChangeOpts{TaskID: tk.ID, Status: models.TaskInProgress, Actor: actor(f.Engineer)}, time.Now())
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestList_Scoping(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	otherCustomer := testdb.User(t, gdb, models.RoleCustomer, "Olga Customer")
	otherProject := testdb.Project(t, gdb, "Harbor Mall", f.Manager.ID, otherCustomer.ID)

	t1 := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskNew)
	t2 := seedTask(t, gdb, f.Project.ID, f.Engineer2.ID, f.Manager.ID, models.TaskClosed)
	t3 := seedTask(t, gdb, otherProject.ID, f.Engineer.ID, f.Manager.ID, models.TaskInProgress)

	tests := []struct {
		name    string
		actor   access.Actor
		filters ListFilters
		want    []uint
	}{
		{"manager all", actor(f.Manager), ListFilters{}, []uint{t1.ID, t2.ID, t3.ID}},
		{"engineer own", actor(f.Engineer), ListFilters{}, []uint{t1.ID, t3.ID}},
		{"customer owned projects", actor(f.Customer), ListFilters{}, []uint{t1.ID, t2.ID}},
		{"other customer", actor(otherCustomer), ListFilters{}, []uint{t3.ID}},
		{"manager by project", actor(f.Manager), ListFilters{ProjectID: otherProject.ID}, []uint{t3.ID}},
		{"manager by status", actor(f.Manager), ListFilters{Status: models.TaskClosed}, []uint{t2.ID}},
		{"manager by assignee", actor(f.Manager), ListFilters{AssigneeID: f.Engineer2.ID}, []uint{t2.ID}},
		{"engineer cannot widen", actor(f.Engineer), ListFilters{AssigneeID: f.Engineer2.ID}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(gdb, tt.actor, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, tk := range got {
				if tk.ID != tt.want[i] {
					t.Errorf("got[%d].ID = %d, want %d", i, tk.ID, tt.want[i])
				}
			}
		})
	}
}

func TestList_PreloadsAndValidates(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskNew)

	got, err := List(gdb, actor(f.Manager), ListFilters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].Assignee.FullName != f.Engineer.FullName {
		t.Errorf("Assignee not preloaded: %+v", got[0].Assignee)
	}
	if got[0].RelatedDefect == nil {
		t.Error("RelatedDefect not preloaded")
	}

	if _, err := List(gdb, actor(f.Manager), ListFilters{Status: "Done"}); !apperr.Is(err, apperr.Validation) {
		t.Errorf("bad status filter err = %v, want validation", err)
	}
	if _, err := List(gdb, access.Actor{}, ListFilters{}); !apperr.Is(err, apperr.Permission) {
		t.Errorf("anonymous err = %v, want permission", err)
	}
}

func TestGet(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	tk := seedTask(t, gdb, f.Project.ID, f.Engineer.ID, f.Manager.ID, models.TaskNew)

	got, err := Get(gdb, tk.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RelatedDefect == nil || got.RelatedDefect.ID != tk.RelatedDefectID {
		t.Errorf("RelatedDefect = %+v", got.RelatedDefect)
	}
	if _, err := Get(gdb, 999); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get(999) err = %v, want not_found", err)
	}
}
