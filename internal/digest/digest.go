// Package digest runs the scheduled overdue sweep: on a cron schedule it
// counts open tasks past their due date per project, publishes the counts
// as a gauge and logs a one-line summary.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/punchlist/internal/logger"
	"github.com/zulandar/punchlist/internal/metrics"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// Options configures a Digest.
type Options struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Schedule string
	Now      func() time.Time
}

// ProjectOverdue is the sweep result for one project.
type ProjectOverdue struct {
	ProjectID   uint
	ProjectName string
	Open        int
	Overdue     int
}

// Result is one sweep.
type Result struct {
	At       time.Time
	Projects []ProjectOverdue
	Overdue  int
}

// Digest schedules sweeps.
type Digest struct {
	db       *gorm.DB
	log      *logger.Logger
	schedule string
	now      func() time.Time
}

// New creates a Digest. An empty schedule makes Run a no-op.
func New(opts Options) *Digest {
	d := &Digest{db: opts.DB, log: opts.Log, schedule: opts.Schedule, now: opts.Now}
	if d.log == nil {
		d.log = logger.Nop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run sweeps on every tick of the schedule until ctx is done.
func (d *Digest) Run(ctx context.Context) error {
	if d.schedule == "" {
		return nil
	}
	if _, err := cronParser.Parse(d.schedule); err != nil {
		return fmt.Errorf("digest: schedule %q: %w", d.schedule, err)
	}

	wait := nextCronDuration(d.schedule, d.now())
	timer := time.NewTimer(wait)
	defer timer.Stop()
	d.log.Info("digest scheduled", "schedule", d.schedule, "next_in", wait.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := d.Sweep(ctx); err != nil {
				d.log.Error("digest sweep failed", "error", err)
			}
			timer.Reset(nextCronDuration(d.schedule, d.now()))
		}
	}
}

// Sweep counts open and overdue tasks per project and updates the
// overdue gauge. Projects without open tasks are omitted.
func (d *Digest) Sweep(ctx context.Context) (*Result, error) {
	now := d.now()
	db := d.db.WithContext(ctx)

	var tasks []models.Task
	err := db.Select("id", "project_id", "due_date", "status").
		Where("status <> ?", models.TaskClosed).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("digest: load open tasks: %w", err)
	}

	byProject := make(map[uint]*ProjectOverdue)
	for _, t := range tasks {
		p, ok := byProject[t.ProjectID]
		if !ok {
			p = &ProjectOverdue{ProjectID: t.ProjectID}
			byProject[t.ProjectID] = p
		}
		p.Open++
		if t.DueDate != nil && t.DueDate.Before(now) {
			p.Overdue++
		}
	}

	ids := make([]uint, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		var projects []models.Project
		if err := db.Select("id", "name").Where("id IN ?", ids).Find(&projects).Error; err != nil {
			return nil, fmt.Errorf("digest: load projects: %w", err)
		}
		for _, p := range projects {
			byProject[p.ID].ProjectName = p.Name
		}
	}

	res := &Result{At: now}
	for _, p := range byProject {
		res.Projects = append(res.Projects, *p)
		res.Overdue += p.Overdue
	}
	sort.Slice(res.Projects, func(i, j int) bool { return res.Projects[i].ProjectID < res.Projects[j].ProjectID })

	metrics.TasksOverdue.Reset()
	for _, p := range res.Projects {
		metrics.TasksOverdue.WithLabelValues(strconv.FormatUint(uint64(p.ProjectID), 10)).Set(float64(p.Overdue))
	}
	d.log.Info("digest", "overdue", res.Overdue, "summary", Format(res))
	return res, nil
}

// Format renders a result as a single line, e.g.
// "Riverside Tower: 2/5 overdue; Annex: 0/1 overdue".
func Format(r *Result) string {
	if r == nil || len(r.Projects) == 0 {
		return "no open tasks"
	}
	parts := make([]string, 0, len(r.Projects))
	for _, p := range r.Projects {
		name := p.ProjectName
		if name == "" {
			name = "project " + strconv.FormatUint(uint64(p.ProjectID), 10)
		}
		parts = append(parts, fmt.Sprintf("%s: %d/%d overdue", name, p.Overdue, p.Open))
	}
	return strings.Join(parts, "; ")
}
