// Package store provides identity persistence for parley using SQLite.
//
// # Architecture
//
// The store owns User and Thread records and the ownership relation between
// them. It deliberately does NOT hold conversation content: the ordered turn
// sequence for a thread lives in the checkpoint store (internal/checkpoint),
// keyed only by the stringified thread ID. The two databases share no
// foreign keys, and no operation here spans both.
//
// # Data Models
//
//   - User: account with email, bcrypt password hash, active and superuser
//     flags. Deleting a user cascades to its threads.
//   - Thread: conversation ownership metadata (title, owning user,
//     timestamps). A thread's ID doubles as the checkpoint-store key.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrEmailExists: email already registered
//   - ErrDuplicateThread: thread ID already exists
//
// All methods accept context.Context for cancellation support.
package store
