package project

import (
	"testing"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/testdb"
)

func actor(u models.User) access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role, FullName: u.FullName}
}

func TestCreate(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)

	p, err := Create(gdb, actor(f.Manager), CreateOpts{Name: " North Wing ", CustomerID: f.Customer.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "North Wing" {
		t.Errorf("Name = %q, want trimmed", p.Name)
	}
	if p.ManagerID != f.Manager.ID {
		t.Errorf("ManagerID = %d, want creator %d", p.ManagerID, f.Manager.ID)
	}
	if !p.Active {
		t.Error("new project should be active")
	}

	got, err := Get(gdb, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Customer.FullName != f.Customer.FullName || got.Manager.FullName != f.Manager.FullName {
		t.Errorf("Get preloads = %q/%q", got.Manager.FullName, got.Customer.FullName)
	}
}

func TestCreate_Errors(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)

	tests := []struct {
		name  string
		actor access.Actor
		opts  CreateOpts
		want  apperr.Kind
	}{
		{"engineer", actor(f.Engineer), CreateOpts{Name: "x", CustomerID: f.Customer.ID}, apperr.Permission},
		{"customer", actor(f.Customer), CreateOpts{Name: "x", CustomerID: f.Customer.ID}, apperr.Permission},
		{"blank name", actor(f.Manager), CreateOpts{Name: " ", CustomerID: f.Customer.ID}, apperr.Validation},
		{"missing customer", actor(f.Manager), CreateOpts{Name: "x", CustomerID: 999}, apperr.NotFound},
		{"customer is engineer", actor(f.Manager), CreateOpts{Name: "x", CustomerID: f.Engineer.ID}, apperr.Validation},
		{"manager is customer", actor(f.Manager), CreateOpts{Name: "x", ManagerID: f.Customer.ID, CustomerID: f.Customer.ID}, apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(gdb, tt.actor, tt.opts)
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("KindOf(err) = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestListForActor(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	otherManager := testdb.User(t, gdb, models.RoleManager, "Oleg Manager")
	other := testdb.Project(t, gdb, "Harbor Mall", otherManager.ID, f.Customer.ID)
	third := testdb.Project(t, gdb, "Depot", otherManager.ID, testdb.User(t, gdb, models.RoleCustomer, "Zed").ID)

	d := models.Defect{ProjectID: third.ID, Title: "x", InitiatorID: f.Customer.ID}
	gdb.Create(&d)
	gdb.Create(&models.Task{RelatedDefectID: d.ID, ProjectID: third.ID, Name: "x", CreatorID: otherManager.ID, AssigneeID: f.Engineer.ID, Status: models.TaskNew})

	tests := []struct {
		name  string
		actor access.Actor
		want  []uint
	}{
		{"manager", actor(f.Manager), []uint{f.Project.ID}},
		{"other manager", actor(otherManager), []uint{other.ID, third.ID}},
		{"customer", actor(f.Customer), []uint{f.Project.ID, other.ID}},
		{"engineer with task", actor(f.Engineer), []uint{third.ID}},
		{"engineer without tasks", actor(f.Engineer2), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListForActor(gdb, tt.actor)
			if err != nil {
				t.Fatalf("ListForActor: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestVisible(t *testing.T) {
	gdb := testdb.Open(t)
	f := testdb.Seed(t, gdb)
	otherManager := testdb.User(t, gdb, models.RoleManager, "Oleg Manager")

	if _, err := Visible(gdb, actor(f.Manager), f.Project.ID); err != nil {
		t.Errorf("manager Visible: %v", err)
	}
	if _, err := Visible(gdb, actor(f.Customer), f.Project.ID); err != nil {
		t.Errorf("customer Visible: %v", err)
	}
	if _, err := Visible(gdb, actor(otherManager), f.Project.ID); !apperr.Is(err, apperr.Permission) {
		t.Errorf("other manager err = %v, want permission", err)
	}
	if _, err := Visible(gdb, actor(f.Manager), 999); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("manager missing err = %v, want not_found", err)
	}
	if _, err := Visible(gdb, actor(f.Engineer), 999); !apperr.Is(err, apperr.Permission) {
		t.Errorf("engineer missing err = %v, want permission", err)
	}
	if _, err := Visible(gdb, actor(f.Engineer), f.Project.ID); !apperr.Is(err, apperr.Permission) {
		t.Errorf("engineer without task err = %v, want permission", err)
	}
}
