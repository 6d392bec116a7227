// Package access holds the single capability check applied by every
// workflow operation. Role decisions are made here and nowhere else.
package access

import (
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
)

// Actor is the authenticated caller, resolved by the identity collaborator
// and passed explicitly into every operation.
type Actor struct {
	ID       uint        `json:"id"`
	Role     models.Role `json:"role"`
	FullName string      `json:"full_name"`
}

// IsManager reports whether the actor holds the manager role.
func (a Actor) IsManager() bool { return a.Role == models.RoleManager }

// Capability names an action an actor may attempt.
type Capability string

const (
	CreateProject   Capability = "project.create"
	ViewProjects    Capability = "project.view"
	CreateDefect    Capability = "defect.create"
	ListNewDefects  Capability = "defect.list_new"
	AssignDefect    Capability = "defect.assign"
	Comment         Capability = "defect.comment"
	ViewHistory     Capability = "defect.history"
	ListTasks       Capability = "task.list"
	ChangeStatus    Capability = "task.change_status"
	CloseTask       Capability = "task.close"
	ViewReport      Capability = "report.view"
	ViewRatings     Capability = "rating.view"
	ListUsers       Capability = "user.list"
	ViewOwnProfile  Capability = "profile.view"
	ManageAnyEntity Capability = "entity.any"
)

var grants = map[models.Role]map[Capability]bool{
	models.RoleManager: capabilities(
		CreateProject, ViewProjects, CreateDefect, ListNewDefects,
		AssignDefect, Comment, ViewHistory, ListTasks,
		ChangeStatus, CloseTask, ViewReport, ViewRatings,
		ListUsers, ViewOwnProfile, ManageAnyEntity,
	),
	models.RoleEngineer: capabilities(
		ViewProjects, CreateDefect, Comment, ViewHistory,
		ListTasks, ChangeStatus, ViewReport, ViewOwnProfile,
	),
	models.RoleCustomer: capabilities(
		ViewProjects, CreateDefect, Comment, ViewHistory,
		ListTasks, ViewReport, ViewRatings, ViewOwnProfile,
	),
}

func capabilities(cs ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// Allowed reports whether role grants capability.
func Allowed(role models.Role, c Capability) bool {
	return grants[role][c]
}

// Check returns a Permission error unless the actor's role grants c.
// The error never names the target entity.
func Check(a Actor, c Capability) error {
	if a.ID == 0 || !a.Role.Valid() {
		return apperr.New(apperr.Permission, "not permitted")
	}
	if !Allowed(a.Role, c) {
		return apperr.New(apperr.Permission, "role %s may not %s", a.Role, c)
	}
	return nil
}

// CheckOwner is Check plus an ownership rule: actors holding
// ManageAnyEntity pass, everyone else must be one of ownerIDs.
func CheckOwner(a Actor, c Capability, ownerIDs ...uint) error {
	if err := Check(a, c); err != nil {
		return err
	}
	if Allowed(a.Role, ManageAnyEntity) {
		return nil
	}
	for _, id := range ownerIDs {
		if id != 0 && id == a.ID {
			return nil
		}
	}
	return apperr.New(apperr.Permission, "not permitted")
}
