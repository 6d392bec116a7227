package rating

import (
	"context"
	"testing"

	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/testdb"
)

func tasksFor(id uint, name string, total, closed int) []models.Task {
	out := make([]models.Task, 0, total)
	for i := 0; i < total; i++ {
		status := models.TaskInProgress
		if i < closed {
			status = models.TaskClosed
		}
		out = append(out, models.Task{
			AssigneeID: id,
			Assignee:   models.User{ID: id, FullName: name, Role: models.RoleEngineer},
			Status:     status,
		})
	}
	return out
}

func TestCompute_RanksByEfficiency(t *testing.T) {
	var tasks []models.Task
	tasks = append(tasks, tasksFor(1, "A", 10, 8)...)
	tasks = append(tasks, tasksFor(2, "B", 5, 5)...)

	got := Compute(tasks)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "B" || got[0].Efficiency != 100.0 || got[0].Total != 5 || got[0].Closed != 5 {
		t.Errorf("got[0] = %+v, want B 5/5 100.0", got[0])
	}
	if got[1].Name != "A" || got[1].Efficiency != 80.0 || got[1].Total != 10 || got[1].Closed != 8 {
		t.Errorf("got[1] = %+v, want A 8/10 80.0", got[1])
	}
}

func TestCompute_TieBreaks(t *testing.T) {
	var tasks []models.Task
	tasks = append(tasks, tasksFor(4, "Zoe", 2, 1)...)
	tasks = append(tasks, tasksFor(3, "Amy", 2, 1)...)
	tasks = append(tasks, tasksFor(5, "Max", 4, 2)...)
	tasks = append(tasks, tasksFor(6, "Amy", 2, 1)...)

	got := Compute(tasks)
	want := []uint{5, 3, 6, 4} // total desc, then name, then id
	for i, s := range got {
		if s.EngineerID != want[i] {
			t.Errorf("got[%d].EngineerID = %d, want %d", i, s.EngineerID, want[i])
		}
	}
}

func TestCompute_IndependentOfInputOrder(t *testing.T) {
	var tasks []models.Task
	tasks = append(tasks, tasksFor(4, "Zoe", 2, 1)...)
	tasks = append(tasks, tasksFor(3, "Amy", 2, 1)...)
	tasks = append(tasks, tasksFor(7, "Ben", 3, 3)...)

	reversed := make([]models.Task, len(tasks))
	for i, tk := range tasks {
		reversed[len(tasks)-1-i] = tk
	}
	a, b := Compute(tasks), Compute(reversed)
	if len(a) != len(b) {
		t.Fatalf("len = %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("[%d] %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestCompute_Rounding(t *testing.T) {
	tests := []struct {
		closed, total int
		want          float64
	}{
		{1, 3, 33.3},
		{2, 3, 66.7},
		{0, 4, 0},
		{7, 7, 100},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		if got := Efficiency(tt.closed, tt.total); got != tt.want {
			t.Errorf("Efficiency(%d, %d) = %v, want %v", tt.closed, tt.total, got, tt.want)
		}
	}
	if got := Efficiency(0, 0); got != 0 {
		t.Errorf("Efficiency(0, 0) = %v, want 0", got)
	}
}

func TestCompute_SkipsNonEngineersAndEmpty(t *testing.T) {
	tasks := []models.Task{
		{AssigneeID: 9, Assignee: models.User{ID: 9, FullName: "Mgr", Role: models.RoleManager}, Status: models.TaskClosed},
		{Status: models.TaskClosed},
	}
	if got := Compute(tasks); len(got) != 0 {
		t.Errorf("Compute = %+v, want empty", got)
	}
	if got := Compute(nil); len(got) != 0 {
		t.Errorf("Compute(nil) = %+v, want empty", got)
	}
}

func TestPodium(t *testing.T) {
	stats := []Stat{{EngineerID: 1}, {EngineerID: 2}, {EngineerID: 3}, {EngineerID: 4}}
	if got := Podium(stats); len(got) != 3 || got[2].EngineerID != 3 {
		t.Errorf("Podium = %+v", got)
	}
	if got := Podium(stats[:2]); len(got) != 2 {
		t.Errorf("Podium of two = %+v", got)
	}
}

func TestLoad(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	for i, st := range []string{models.TaskClosed, models.TaskNew} {
		d := models.Defect{ProjectID: f.Project.ID, Title: "d", InitiatorID: f.Customer.ID, Status: models.DefectAssigned}
		gdb.Create(&d)
		assignee := f.Engineer.ID
		if i == 1 {
			assignee = f.Engineer2.ID
		}
		if err := gdb.Create(&models.Task{RelatedDefectID: d.ID, ProjectID: f.Project.ID, Name: "t", Status: st, CreatorID: f.Manager.ID, AssigneeID: assignee}).Error; err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	got, err := Load(context.Background(), gdb)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].EngineerID != f.Engineer.ID || got[0].Efficiency != 100 || got[0].Name != f.Engineer.FullName {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].EngineerID != f.Engineer2.ID || got[1].Efficiency != 0 {
		t.Errorf("got[1] = %+v", got[1])
	}
}
