package tracker

import (
	"context"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
)

// CurrentUserProfile returns the actor's own user record.
func (t *Tracker) CurrentUserProfile(ctx context.Context, actor access.Actor) (*models.User, error) {
	var u models.User
	err := access.Check(actor, access.ViewOwnProfile)
	if err == nil {
		if dbErr := t.db.WithContext(ctx).Where("id = ?", actor.ID).First(&u).Error; dbErr != nil {
			if isNotFound(dbErr) {
				err = apperr.New(apperr.NotFound, "user not found: %d", actor.ID)
			} else {
				err = apperr.Wrap(apperr.Internal, dbErr, "tracker: load user %d", actor.ID)
			}
		}
	}
	t.observe("current_user_profile", err, "actor_id", actor.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users, optionally of one role, ordered by name. Used by
// managers to pick assignees.
func (t *Tracker) ListUsers(ctx context.Context, actor access.Actor, role models.Role) ([]models.User, error) {
	var users []models.User
	err := access.Check(actor, access.ListUsers)
	if err == nil && role != "" && !role.Valid() {
		err = apperr.New(apperr.Validation, "unknown role %q", role)
	}
	if err == nil {
		q := t.db.WithContext(ctx).Order("full_name ASC, id ASC")
		if role != "" {
			q = q.Where("role = ?", role)
		}
		if dbErr := q.Find(&users).Error; dbErr != nil {
			err = apperr.Wrap(apperr.Internal, dbErr, "tracker: list users")
		}
	}
	t.observe("list_users", err, "actor_id", actor.ID)
	if err != nil {
		return nil, err
	}
	return users, nil
}
