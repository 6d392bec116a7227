// Package testdb opens migrated in-memory databases and seeds fixtures for
// package tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/zulandar/punchlist/internal/db"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a fresh, migrated in-memory sqlite database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

// User inserts a user with a unique email.
func User(t testing.TB, gdb *gorm.DB, role models.Role, name string) models.User {
	t.Helper()
	u := models.User{
		FullName: name,
		Email:    fmt.Sprintf("user%d@example.com", seq.Add(1)),
		Role:     role,
	}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return u
}

// Project inserts an active project owned by managerID and customerID.
func Project(t testing.TB, gdb *gorm.DB, name string, managerID, customerID uint) models.Project {
	t.Helper()
	p := models.Project{
		Name:       name,
		ManagerID:  managerID,
		CustomerID: customerID,
		Active:     true,
	}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("create project %q: %v", name, err)
	}
	return p
}

// Fixture is a small org: one manager, two engineers, one customer and a
// project tying them together.
type Fixture struct {
	Manager   models.User
	Engineer  models.User
	Engineer2 models.User
	Customer  models.User
	Project   models.Project
}

// Seed creates a Fixture in gdb.
func Seed(t testing.TB, gdb *gorm.DB) Fixture {
	t.Helper()
	var f Fixture
	f.Manager = User(t, gdb, models.RoleManager, "Maria Manager")
	f.Engineer = User(t, gdb, models.RoleEngineer, "Egor Engineer")
	f.Engineer2 = User(t, gdb, models.RoleEngineer, "Elena Engineer")
	f.Customer = User(t, gdb, models.RoleCustomer, "Carl Customer")
	f.Project = Project(t, gdb, "Riverside Tower", f.Manager.ID, f.Customer.ID)
	return f
}
