package conversion

import (
	"testing"
	"time"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/defect"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/testdb"
	"gorm.io/gorm"
)

func actor(u models.User) access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role, FullName: u.FullName}
}

func newDefect(t *testing.T, gdb *gorm.DB, f testdb.Fixture) *models.Defect {
	t.Helper()
	d, err := defect.Create(gdb, defect.CreateOpts{
		ProjectID:   f.Project.ID,
		InitiatorID: f.Customer.ID,
		Title:       "Water stain on ceiling",
		Description: "Unit 12B",
	}, time.Now())
	if err != nil {
		t.Fatalf("defect.Create: %v", err)
	}
	return d
}

// assign runs Assign in a transaction, as the tracker does.
func assign(gdb *gorm.DB, opts AssignOpts) (*models.Task, error) {
	var task *models.Task
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = Assign(tx, opts, time.Now())
		return err
	})
	return task, err
}

func TestAssign_CreatesTask(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	d := newDefect(t, gdb, f)
	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	task, err := assign(gdb, AssignOpts{DefectID: d.ID, AssigneeID: f.Engineer.ID, DueDate: &due, Actor: actor(f.Manager)})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if task.Status != models.TaskNew {
		t.Errorf("task.Status = %q, want %q", task.Status, models.TaskNew)
	}
	if task.Name != d.Title || task.Description != d.Description {
		t.Errorf("task name/description = %q/%q, want defect's", task.Name, task.Description)
	}
	if task.RelatedDefectID != d.ID || task.ProjectID != f.Project.ID {
		t.Errorf("task links = defect %d project %d", task.RelatedDefectID, task.ProjectID)
	}
	if task.CreatorID != f.Manager.ID || task.AssigneeID != f.Engineer.ID {
		t.Errorf("task creator/assignee = %d/%d", task.CreatorID, task.AssigneeID)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("task.DueDate = %v, want %v", task.DueDate, due)
	}

	var reloaded models.Defect
	gdb.First(&reloaded, d.ID)
	if reloaded.Status != models.DefectAssigned {
		t.Errorf("defect.Status = %q, want %q", reloaded.Status, models.DefectAssigned)
	}

	entries, _ := history.Read(gdb, d.ID)
	if len(entries) != 2 || entries[1].ActionType != models.ActionAssigned {
		t.Fatalf("history = %+v, want created then assigned", entries)
	}
	if entries[1].ActionText != "Assigned to Egor Engineer, due 2024-07-01" {
		t.Errorf("assigned text = %q", entries[1].ActionText)
	}
}

func TestAssign_SecondCallConflicts(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	d := newDefect(t, gdb, f)

	if _, err := assign(gdb, AssignOpts{DefectID: d.ID, AssigneeID: f.Engineer.ID, Actor: actor(f.Manager)}); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := assign(gdb, AssignOpts{DefectID: d.ID, AssigneeID: f.Engineer2.ID, Actor: actor(f.Manager)})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("second Assign err = %v, want conflict", err)
	}

	var count int64
	gdb.Model(&models.Task{}).Where("related_defect_id = ?", d.ID).Count(&count)
	if count != 1 {
		t.Errorf("task count = %d, want 1", count)
	}
}

func TestAssign_EngineerCannotAssign(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	d := newDefect(t, gdb, f)

	_, err := assign(gdb, AssignOpts{DefectID: d.ID, AssigneeID: f.Engineer2.ID, Actor: actor(f.Engineer)})
	if !apperr.Is(err, apperr.Permission) {
		t.Fatalf("err = %v, want permission", err)
	}

	var reloaded models.Defect
	gdb.First(&reloaded, d.ID)
	if reloaded.Status != models.DefectNew {
		t.Errorf("defect.Status = %q, want New", reloaded.Status)
	}
	var count int64
	gdb.Model(&models.Task{}).Count(&count)
	if count != 0 {
		t.Errorf("task count = %d, want 0", count)
	}
}

func TestAssign_Errors(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	d := newDefect(t, gdb, f)

	tests := []struct {
		name string
		opts AssignOpts
		want apperr.Kind
	}{
		{"customer actor", AssignOpts{DefectID: d.ID, AssigneeID: f.Engineer.ID, Actor: actor(f.Customer)}, apperr.Permission},
		{"missing defect", AssignOpts{DefectID: 999, AssigneeID: f.Engineer.ID, Actor: actor(f.Manager)}, apperr.NotFound},
		{"missing assignee", AssignOpts{DefectID: d.ID, AssigneeID: 999, Actor: actor(f.Manager)}, apperr.NotFound},
		{"assignee not engineer", AssignOpts{DefectID: d.ID, AssigneeID: f.Customer.ID, Actor: actor(f.Manager)}, apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assign(gdb, tt.opts)
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("KindOf(err) = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}

	// None of the failures touched the defect or its history.
	var reloaded models.Defect
	gdb.First(&reloaded, d.ID)
	if reloaded.Status != models.DefectNew {
		t.Errorf("defect.Status = %q, want New", reloaded.Status)
	}
	entries, _ := history.Read(gdb, d.ID)
	if len(entries) != 1 {
		t.Errorf("history len = %d, want 1", len(entries))
	}
}
