// ABOUTME: Store interface and data types for parley identity persistence
// ABOUTME: Defines User, Thread structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when trying to create a user with an email
// that is already registered
var ErrEmailExists = errors.New("email already registered")

// ErrDuplicateThread is returned when trying to create a thread that already exists
var ErrDuplicateThread = errors.New("thread already exists")

// User represents a registered account. Users own threads; deleting a user
// cascades to its threads.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	IsActive     bool
	IsSuperuser  bool
	FullName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Thread represents a conversation owned by a user. The stringified thread
// ID is the only join between this store and the checkpoint store: the
// checkpoint store knows nothing about users or ownership.
type Thread struct {
	ID        string
	Title     string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserUpdate carries optional field changes for a user. Nil fields are
// left untouched.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
	IsActive     *bool
	IsSuperuser  *bool
	FullName     *string
}

// Store defines the interface for user and thread persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUser(ctx context.Context, id string, update *UserUpdate) error
	DeleteUser(ctx context.Context, id string) error

	// Threads
	CreateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, ownerID string, offset, limit int) ([]*Thread, error)
	ListAllThreads(ctx context.Context, offset, limit int) ([]*Thread, error)
	CountThreads(ctx context.Context, ownerID string) (int, error)
	CountAllThreads(ctx context.Context) (int, error)
	UpdateThreadTitle(ctx context.Context, id, title string) error
	DeleteThread(ctx context.Context, id string) error

	// Close releases any resources held by the store
	Close() error
}
