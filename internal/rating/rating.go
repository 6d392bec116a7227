// Package rating ranks engineers by the share of their tasks that are
// closed.
package rating

import (
	"context"
	"math"
	"sort"

	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// Stat is one engineer's standing. Efficiency is a percentage with one
// decimal place.
type Stat struct {
	EngineerID uint    `json:"engineer_id"`
	Name       string  `json:"name"`
	Total      int     `json:"total"`
	Closed     int     `json:"closed"`
	Efficiency float64 `json:"efficiency"`
}

// Compute groups tasks by assignee and ranks the result by efficiency
// desc, total desc, name asc, id asc. Tasks must have Assignee loaded.
func Compute(tasks []models.Task) []Stat {
	byID := make(map[uint]*Stat)
	for _, t := range tasks {
		if t.AssigneeID == 0 {
			continue
		}
		if t.Assignee.Role != "" && t.Assignee.Role != models.RoleEngineer {
			continue
		}
		s, ok := byID[t.AssigneeID]
		if !ok {
			s = &Stat{EngineerID: t.AssigneeID, Name: t.Assignee.FullName}
			byID[t.AssigneeID] = s
		}
		s.Total++
		if t.Status == models.TaskClosed {
			s.Closed++
		}
	}

	stats := make([]Stat, 0, len(byID))
	for _, s := range byID {
		s.Efficiency = Efficiency(s.Closed, s.Total)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Efficiency != b.Efficiency {
			return a.Efficiency > b.Efficiency
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.EngineerID < b.EngineerID
	})
	return stats
}

// Efficiency returns closed/total as a percentage rounded to one decimal.
func Efficiency(closed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(closed)/float64(total)*1000) / 10
}

// Podium returns the top three stats.
func Podium(stats []Stat) []Stat {
	if len(stats) > 3 {
		return stats[:3]
	}
	return stats
}

// Load reads every assigned task with its assignee and computes the
// ranking.
func Load(ctx context.Context, db *gorm.DB) ([]Stat, error) {
	var tasks []models.Task
	if err := db.WithContext(ctx).Preload("Assignee").Find(&tasks).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "rating: load tasks")
	}
	return Compute(tasks), nil
}
