package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "FullName", "not null")
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Role", "size:16")
	assertGormTag(t, typ, "Role", "index")

	assertFieldType(t, typ, "ID", "uint")
	assertFieldType(t, typ, "Role", "models.Role")
}

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleEngineer, true},
		{RoleManager, true},
		{RoleCustomer, true},
		{"admin", false},
		{"", false},
		{"Manager", false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestProject_Relations(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "ManagerID", "index")
	assertGormTag(t, typ, "CustomerID", "index")
	assertGormTag(t, typ, "Active", "default:true")
	assertGormTag(t, typ, "Manager", "foreignKey:ManagerID")
	assertGormTag(t, typ, "Customer", "foreignKey:CustomerID")

	assertFieldType(t, typ, "Manager", "models.User")
	assertFieldType(t, typ, "Customer", "models.User")
}

func TestDefect_Fields(t *testing.T) {
	typ := reflect.TypeOf(Defect{})

	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "InitiatorID", "index")
	assertGormTag(t, typ, "Status", "default:New")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Files", "foreignKey:DefectID")
	assertGormTag(t, typ, "History", "foreignKey:DefectID")

	assertFieldType(t, typ, "Files", "[]models.DefectFile")
	assertFieldType(t, typ, "History", "[]models.DefectHistory")
}

func TestDefectHistory_SequenceIndex(t *testing.T) {
	typ := reflect.TypeOf(DefectHistory{})

	// (defect_id, seq) shares one unique index so two appends can never
	// claim the same position.
	assertGormTag(t, typ, "DefectID", "uniqueIndex:idx_history_defect_seq")
	assertGormTag(t, typ, "Seq", "uniqueIndex:idx_history_defect_seq")
	assertGormTag(t, typ, "ActionType", "not null")
	assertGormTag(t, typ, "ActionText", "type:text")
	assertGormTag(t, typ, "CreatedAt", "precision:6")
	assertGormTag(t, typ, "File", "foreignKey:FileID")

	assertFieldType(t, typ, "FileID", "*uint")
	assertFieldType(t, typ, "File", "*models.DefectFile")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "RelatedDefectID", "uniqueIndex")
	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "Status", "default:New")
	assertGormTag(t, typ, "AssigneeID", "index")
	assertGormTag(t, typ, "RelatedDefect", "foreignKey:RelatedDefectID")
	assertGormTag(t, typ, "Assignee", "foreignKey:AssigneeID")

	assertFieldType(t, typ, "DueDate", "*time.Time")
	assertFieldType(t, typ, "ClosedAt", "*time.Time")
	assertFieldType(t, typ, "RelatedDefect", "*models.Defect")
}

func TestTaskStatuses_Order(t *testing.T) {
	want := []string{"New", "InProgress", "InReview", "Closed"}
	if !reflect.DeepEqual(TaskStatuses, want) {
		t.Errorf("TaskStatuses = %v, want %v", TaskStatuses, want)
	}
}
