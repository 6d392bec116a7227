package tracker

import (
	"context"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/project"
	"github.com/zulandar/punchlist/internal/rating"
	"github.com/zulandar/punchlist/internal/report"
	"github.com/zulandar/punchlist/internal/task"
)

// Report is a filtered project report with its summary.
type Report struct {
	Rows    []report.Row   `json:"rows"`
	Summary report.Summary `json:"summary"`
}

// BuildReport loads the project's rows visible to actor and applies the
// filter.
func (t *Tracker) BuildReport(ctx context.Context, actor access.Actor, projectID uint, f report.Filter) (*Report, error) {
	rows, err := t.reportRows(ctx, actor, projectID, f)
	t.observe("build_report", err, "actor_id", actor.ID, "project_id", projectID)
	if err != nil {
		return nil, err
	}
	return &Report{Rows: rows, Summary: report.Summarize(rows)}, nil
}

// ExportReport renders the filtered rows with w (CSV when nil).
func (t *Tracker) ExportReport(ctx context.Context, actor access.Actor, projectID uint, f report.Filter, w report.Writer) (*report.Artifact, error) {
	rows, err := t.reportRows(ctx, actor, projectID, f)
	var a *report.Artifact
	if err == nil {
		a, err = report.Export(rows, w, t.now())
	}
	t.observe("export_report", err, "actor_id", actor.ID, "project_id", projectID)
	return a, err
}

func (t *Tracker) reportRows(ctx context.Context, actor access.Actor, projectID uint, f report.Filter) ([]report.Row, error) {
	if err := access.Check(actor, access.ViewReport); err != nil {
		return nil, err
	}
	if f.Status != "" && !task.ValidStatus(f.Status) {
		return nil, apperr.New(apperr.Validation, "unknown task status %q", f.Status)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperr.New(apperr.Validation, "date range start must be before its end")
	}
	if _, err := project.Visible(t.db.WithContext(ctx), actor, projectID); err != nil {
		return nil, err
	}
	rows, err := report.Load(ctx, t.db, projectID, t.now())
	if err != nil {
		return nil, err
	}
	return report.Apply(rows, f), nil
}

// Ratings is the engineer ranking and its top three.
type Ratings struct {
	Engineers []rating.Stat `json:"engineers"`
	Podium    []rating.Stat `json:"podium"`
}

// ComputeRatings ranks engineers by efficiency. Managers and customers only.
func (t *Tracker) ComputeRatings(ctx context.Context, actor access.Actor) (*Ratings, error) {
	var stats []rating.Stat
	err := access.Check(actor, access.ViewRatings)
	if err == nil {
		stats, err = rating.Load(ctx, t.db)
	}
	t.observe("compute_ratings", err, "actor_id", actor.ID)
	if err != nil {
		return nil, err
	}
	return &Ratings{Engineers: stats, Podium: rating.Podium(stats)}, nil
}
