// Package report derives per-task report rows from a project snapshot and
// summarizes them. Everything past Load is a pure function of the rows.
package report

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Row is one task in a report.
type Row struct {
	TaskID       uint       `json:"task_id"`
	ProjectName  string     `json:"project_name"`
	DefectName   string     `json:"defect_name"`
	TaskName     string     `json:"task_name"`
	Status       string     `json:"status"`
	AssigneeName string     `json:"assignee_name"`
	DueDate      *time.Time `json:"due_date"`
	HistoryCount int        `json:"history_count"`
	LastUpdate   time.Time  `json:"last_update"`
	CreatedAt    time.Time  `json:"created_at"`
	Overdue      bool       `json:"overdue"`
}

// Filter narrows rows. Status is an exact match; From/To bound the due date
// as an open interval, and rows without a due date are dropped when either
// bound is set.
type Filter struct {
	Status string
	From   *time.Time
	To     *time.Time
}

// snapshotTx asks for one consistent view across the task and history
// reads. Drivers without isolation levels (sqlite) serialize anyway.
var snapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Load reads the project's tasks with their defects, assignees and history
// summaries and turns them into rows ordered by task id. Tasks and history
// summaries are read in one transaction.
func Load(ctx context.Context, db *gorm.DB, projectID uint, now time.Time) ([]Row, error) {
	var (
		project models.Project
		tasks   []models.Task
		sums    map[uint]history.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.WithContext(gctx).Where("id = ?", projectID).First(&project).Error; err != nil {
			return apperr.Wrap(apperr.Internal, err, "report: load project %d", projectID)
		}
		return nil
	})
	g.Go(func() error {
		return db.WithContext(gctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Preload("RelatedDefect").Preload("Assignee").
				Where("project_id = ?", projectID).
				Order("id ASC").
				Find(&tasks).Error
			if err != nil {
				return apperr.Wrap(apperr.Internal, err, "report: load tasks for project %d", projectID)
			}
			defectIDs := make([]uint, 0, len(tasks))
			for _, t := range tasks {
				defectIDs = append(defectIDs, t.RelatedDefectID)
			}
			sums, err = history.Summaries(tx, defectIDs)
			return err
		}, snapshotTx)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Rows(project, tasks, sums, now), nil
}

// Rows assembles report rows from loaded records.
func Rows(project models.Project, tasks []models.Task, sums map[uint]history.Summary, now time.Time) []Row {
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		r := Row{
			TaskID:       t.ID,
			ProjectName:  project.Name,
			TaskName:     t.Name,
			Status:       t.Status,
			AssigneeName: t.Assignee.FullName,
			DueDate:      t.DueDate,
			LastUpdate:   t.UpdatedAt,
			CreatedAt:    t.CreatedAt,
		}
		if t.RelatedDefect != nil {
			r.DefectName = t.RelatedDefect.Title
		}
		if s, ok := sums[t.RelatedDefectID]; ok {
			r.HistoryCount = s.Count
			if s.Last.After(r.LastUpdate) {
				r.LastUpdate = s.Last
			}
		}
		r.Overdue = t.DueDate != nil && t.DueDate.Before(now) && t.Status != models.TaskClosed
		rows = append(rows, r)
	}
	return rows
}

// Apply returns the rows matching f, preserving order.
func Apply(rows []Row, f Filter) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.From != nil || f.To != nil {
			if r.DueDate == nil {
				continue
			}
			if f.From != nil && !r.DueDate.After(*f.From) {
				continue
			}
			if f.To != nil && !r.DueDate.Before(*f.To) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// AverageCompletionTime is the mean of last_update - created_at, in hours,
// over Closed rows. ok is false when no row is Closed.
func AverageCompletionTime(rows []Row) (hours float64, ok bool) {
	var total time.Duration
	n := 0
	for _, r := range rows {
		if r.Status != models.TaskClosed {
			continue
		}
		total += r.LastUpdate.Sub(r.CreatedAt)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total.Hours() / float64(n), true
}

// StatusCount is the number of rows in one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// AssigneeCount is the number of rows held by one assignee.
type AssigneeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary aggregates a set of rows.
type Summary struct {
	Total              int             `json:"total"`
	Closed             int             `json:"closed"`
	Overdue            int             `json:"overdue"`
	ByStatus           []StatusCount   `json:"by_status"`
	ByAssignee         []AssigneeCount `json:"by_assignee"`
	AvgCompletionHours *float64        `json:"avg_completion_hours"`
}

// Summarize counts rows by status (workflow order, zero counts included)
// and by assignee (count desc, then name).
func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	byStatus := make(map[string]int)
	byAssignee := make(map[string]int)
	for _, r := range rows {
		byStatus[r.Status]++
		byAssignee[r.AssigneeName]++
		if r.Status == models.TaskClosed {
			s.Closed++
		}
		if r.Overdue {
			s.Overdue++
		}
	}
	for _, st := range models.TaskStatuses {
		s.ByStatus = append(s.ByStatus, StatusCount{Status: st, Count: byStatus[st]})
	}
	for name, n := range byAssignee {
		s.ByAssignee = append(s.ByAssignee, AssigneeCount{Name: name, Count: n})
	}
	sort.Slice(s.ByAssignee, func(i, j int) bool {
		a, b := s.ByAssignee[i], s.ByAssignee[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if h, ok := AverageCompletionTime(rows); ok {
		h = math.Round(h*10) / 10
		s.AvgCompletionHours = &h
	}
	return s
}
