package digest

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zulandar/punchlist/internal/metrics"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/testdb"
	"gorm.io/gorm"
)

var sweepTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func addTask(t *testing.T, gdb *gorm.DB, f testdb.Fixture, projectID uint, status string, due *time.Time) {
	t.Helper()
	d := models.Defect{ProjectID: projectID, Title: "d", InitiatorID: f.Customer.ID}
	if err := gdb.Create(&d).Error; err != nil {
		t.Fatalf("create defect: %v", err)
	}
	tk := models.Task{
		RelatedDefectID: d.ID,
		ProjectID:       projectID,
		Name:            "t",
		Status:          status,
		CreatorID:       f.Manager.ID,
		AssigneeID:      f.Engineer.ID,
		DueDate:         due,
	}
	if err := gdb.Create(&tk).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
}

func at(d time.Duration) *time.Time {
	v := sweepTime.Add(d)
	return &v
}

func TestSweep(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	annex := testdb.Project(t, gdb, "Annex", f.Manager.ID, f.Customer.ID)

	addTask(t, gdb, f, f.Project.ID, models.TaskNew, at(-48*time.Hour))
	addTask(t, gdb, f, f.Project.ID, models.TaskInProgress, at(-time.Hour))
	addTask(t, gdb, f, f.Project.ID, models.TaskInReview, at(24*time.Hour))
	addTask(t, gdb, f, f.Project.ID, models.TaskClosed, at(-72*time.Hour))
	addTask(t, gdb, f, annex.ID, models.TaskNew, nil)

	d := New(Options{DB: gdb, Now: func() time.Time { return sweepTime }})
	res, err := d.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Overdue != 2 {
		t.Errorf("Overdue = %d, want 2", res.Overdue)
	}
	if len(res.Projects) != 2 {
		t.Fatalf("len(Projects) = %d, want 2", len(res.Projects))
	}
	tower := res.Projects[0]
	if tower.ProjectName != "Riverside Tower" || tower.Open != 3 || tower.Overdue != 2 {
		t.Errorf("Projects[0] = %+v", tower)
	}
	if res.Projects[1].Open != 1 || res.Projects[1].Overdue != 0 {
		t.Errorf("Projects[1] = %+v", res.Projects[1])
	}

	label := strconv.FormatUint(uint64(f.Project.ID), 10)
	if got := testutil.ToFloat64(metrics.TasksOverdue.WithLabelValues(label)); got != 2 {
		t.Errorf("overdue gauge = %v, want 2", got)
	}

	line := Format(res)
	if !strings.Contains(line, "Riverside Tower: 2/3 overdue") || !strings.Contains(line, "Annex: 0/1 overdue") {
		t.Errorf("Format = %q", line)
	}
}

func TestSweep_Empty(t *testing.T) {
	gdb := testdb.Open(t)
	res, err := New(Options{DB: gdb}).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Overdue != 0 || len(res.Projects) != 0 {
		t.Errorf("res = %+v, want empty", res)
	}
	if Format(res) != "no open tasks" {
		t.Errorf("Format = %q", Format(res))
	}
}

func TestRun_EmptyScheduleReturns(t *testing.T) {
	if err := New(Options{}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	err := New(Options{Schedule: "every day"}).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "digest: schedule") {
		t.Errorf("error = %q", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	gdb := testdb.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{DB: gdb, Schedule: "0 0 1 1 *"}).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
