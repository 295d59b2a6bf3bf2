// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user/thread CRUD, email uniqueness, and the delete cascade

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestUser(t *testing.T, store *SQLiteStore, email string) *User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	user := &User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		IsActive:     true,
		FullName:     "Test User",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	user := &User{
		ID:           "user-123",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		IsSuperuser:  true,
		FullName:     "Alice",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, "user-123")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	if got.Email != user.Email {
		t.Errorf("Email mismatch: got %q, want %q", got.Email, user.Email)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if !got.IsSuperuser {
		t.Error("IsSuperuser = false, want true")
	}
	if got.FullName != "Alice" {
		t.Errorf("FullName mismatch: got %q, want %q", got.FullName, "Alice")
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, now)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser error = %v, want ErrNotFound", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	newTestUser(t, store, "dup@example.com")

	now := time.Now().UTC()
	err := store.CreateUser(ctx, &User{
		ID:           "other-id",
		Email:        "dup@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("CreateUser error = %v, want ErrEmailExists", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	store := newTestStore(t)
	user := newTestUser(t, store, "bob@example.com")

	got, err := store.GetUserByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, user.ID)
	}

	_, err = store.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "carol@example.com")

	newName := "Carol Renamed"
	inactive := false
	err := store.UpdateUser(ctx, user.ID, &UserUpdate{
		FullName: &newName,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.FullName != newName {
		t.Errorf("FullName = %q, want %q", got.FullName, newName)
	}
	if got.IsActive {
		t.Error("IsActive = true, want false")
	}
	// Untouched fields survive
	if got.Email != "carol@example.com" {
		t.Errorf("Email = %q, want unchanged", got.Email)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	name := "x"
	err := store.UpdateUser(context.Background(), "missing", &UserUpdate{FullName: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUser error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser_EmailConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, store, "first@example.com")
	second := newTestUser(t, store, "second@example.com")

	taken := "first@example.com"
	err := store.UpdateUser(ctx, second.ID, &UserUpdate{Email: &taken})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("UpdateUser error = %v, want ErrEmailExists", err)
	}
}

func TestListAndCountUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		newTestUser(t, store, fmt.Sprintf("user%d@example.com", i))
	}

	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 5 {
		t.Errorf("CountUsers = %d, want 5", count)
	}

	users, err := store.ListUsers(ctx, 0, 3)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("ListUsers returned %d users, want 3", len(users))
	}

	rest, err := store.ListUsers(ctx, 3, 10)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("ListUsers offset=3 returned %d users, want 2", len(rest))
	}
}

func TestCreateAndGetThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "owner@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	thread := &Thread{
		ID:        "thread-123",
		Title:     "Quarterly numbers",
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	got, err := store.GetThread(ctx, "thread-123")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if got.Title != thread.Title {
		t.Errorf("Title mismatch: got %q, want %q", got.Title, thread.Title)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID mismatch: got %q, want %q", got.UserID, user.ID)
	}
}

func TestCreateThread_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "owner@example.com")

	now := time.Now().UTC()
	thread := &Thread{ID: "thread-dup", Title: "t", UserID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	err := store.CreateThread(ctx, thread)
	if !errors.Is(err, ErrDuplicateThread) {
		t.Errorf("CreateThread error = %v, want ErrDuplicateThread", err)
	}
}

func TestListThreads_ScopedToOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := newTestUser(t, store, "alice@example.com")
	bob := newTestUser(t, store, "bob@example.com")

	for i := 0; i < 3; i++ {
		now := time.Now().UTC()
		err := store.CreateThread(ctx, &Thread{
			ID:        fmt.Sprintf("alice-thread-%d", i),
			Title:     "a",
			UserID:    alice.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateThread failed: %v", err)
		}
	}
	now := time.Now().UTC()
	if err := store.CreateThread(ctx, &Thread{ID: "bob-thread", Title: "b", UserID: bob.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	aliceThreads, err := store.ListThreads(ctx, alice.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListThreads failed: %v", err)
	}
	if len(aliceThreads) != 3 {
		t.Errorf("ListThreads returned %d threads, want 3", len(aliceThreads))
	}

	all, err := store.ListAllThreads(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListAllThreads failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("ListAllThreads returned %d threads, want 4", len(all))
	}

	count, err := store.CountThreads(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountThreads failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountThreads = %d, want 3", count)
	}

	total, err := store.CountAllThreads(ctx)
	if err != nil {
		t.Fatalf("CountAllThreads failed: %v", err)
	}
	if total != 4 {
		t.Errorf("CountAllThreads = %d, want 4", total)
	}
}

func TestUpdateThreadTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "owner@example.com")

	now := time.Now().UTC()
	if err := store.CreateThread(ctx, &Thread{ID: "t1", Title: "old", UserID: user.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	if err := store.UpdateThreadTitle(ctx, "t1", "new title"); err != nil {
		t.Fatalf("UpdateThreadTitle failed: %v", err)
	}

	got, err := store.GetThread(ctx, "t1")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if got.Title != "new title" {
		t.Errorf("Title = %q, want %q", got.Title, "new title")
	}

	if err := store.UpdateThreadTitle(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateThreadTitle error = %v, want ErrNotFound", err)
	}
}

func TestDeleteThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "owner@example.com")

	now := time.Now().UTC()
	if err := store.CreateThread(ctx, &Thread{ID: "t1", Title: "t", UserID: user.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	if err := store.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("DeleteThread failed: %v", err)
	}

	if _, err := store.GetThread(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetThread after delete = %v, want ErrNotFound", err)
	}

	if err := store.DeleteThread(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteThread twice = %v, want ErrNotFound", err)
	}
}

func TestDeleteUser_CascadesToThreads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "doomed@example.com")

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		err := store.CreateThread(ctx, &Thread{
			ID:        fmt.Sprintf("doomed-thread-%d", i),
			Title:     "t",
			UserID:    user.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateThread failed: %v", err)
		}
	}

	if err := store.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	// Threads go with the user
	for i := 0; i < 2; i++ {
		_, err := store.GetThread(ctx, fmt.Sprintf("doomed-thread-%d", i))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetThread after cascade = %v, want ErrNotFound", err)
		}
	}
}
