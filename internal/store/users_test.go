package store

import (
	"context"
	"testing"

	"github.com/erazemk/skladnost/internal/db"
	"github.com/erazemk/skladnost/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "inspector1", "hash123", model.RoleInspector)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Role != model.RoleInspector {
		t.Errorf("expected role 'inspector', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "inspector1" {
		t.Errorf("expected username 'inspector1', got %q", got.Username)
	}

	missing, err := GetUser(ctx, database, 999)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestGetUserByUsernameIgnoresDeleted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "alice", "hash", model.RoleAdmin)

	got, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected alice, got %+v", got)
	}

	DeleteUser(ctx, database, user.ID)

	got, err = GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got != nil {
		t.Error("expected deleted user to be hidden")
	}

	// The username can be reused after deletion.
	if _, err := CreateUser(ctx, database, "alice", "hash", model.RoleViewer); err != nil {
		t.Errorf("expected username reuse to succeed, got %v", err)
	}
}

func TestListUsersAndRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "b", "hash", model.RoleViewer)
	a, _ := CreateUser(ctx, database, "a", "hash", model.RoleViewer)
	UpdateUserRole(ctx, database, a.ID, model.RoleInspector)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "a" || users[0].Role != model.RoleInspector {
		t.Errorf("unexpected first user: %+v", users[0])
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleViewer)
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}
