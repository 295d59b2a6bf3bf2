// ABOUTME: Conversation gateway joining identity, checkpoints, and the agent
// ABOUTME: SendMessage drives one agent turn per thread, GetHistory reconciles

package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/lunarch/parley/internal/agent"
	"github.com/lunarch/parley/internal/checkpoint"
	"github.com/lunarch/parley/internal/store"
)

// ErrBlankContent is returned when a message has no visible text.
var ErrBlankContent = errors.New("message content is blank")

// ErrForbidden is returned when the caller owns neither the thread nor a
// superuser flag.
var ErrForbidden = errors.New("not the thread owner")

// ErrUpstream is returned when the agent runtime fails. The underlying
// cause is logged, never surfaced: model and provider errors must not
// leak through the API.
var ErrUpstream = errors.New("agent runtime failed")

// DefaultThreadTitle is used when a title cannot be derived from content.
const DefaultThreadTitle = "New Conversation"

// ThreadStore defines what the service needs from the identity store
type ThreadStore interface {
	CreateThread(ctx context.Context, thread *store.Thread) error
	GetThread(ctx context.Context, id string) (*store.Thread, error)
}

// Service is the conversation gateway. All user-visible chat traffic flows
// through here: it checks ownership against the identity store, serializes
// turns per thread, and reads transcripts back out of the checkpoint log.
type Service struct {
	store       ThreadStore
	runtime     agent.Runtime
	log         checkpoint.Log
	logger      *slog.Logger
	turnTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a conversation gateway. A zero turnTimeout disables the
// per-turn deadline.
func New(st ThreadStore, runtime agent.Runtime, log checkpoint.Log, turnTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		runtime:     runtime,
		log:         log,
		logger:      logger.With("component", "chat"),
		turnTimeout: turnTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SendResult is the outcome of one successful SendMessage call.
type SendResult struct {
	ThreadID string
	Response string // assistant reply rendered as HTML
}

// SendMessage runs one agent turn for the caller.
//
// With no thread id a new thread is created, owned by the caller and
// titled from the first words of the message. With a thread id the thread
// must exist and belong to the caller (superusers may send into any
// thread). At most one turn per thread is in flight at a time.
//
// A thread created here is not rolled back if the agent turn fails: the
// caller keeps the empty thread and may retry into it.
func (s *Service) SendMessage(ctx context.Context, user *store.User, threadID, content string) (*SendResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrBlankContent
	}

	thread, err := s.resolveThread(ctx, user, threadID, content)
	if err != nil {
		return nil, err
	}

	lock := s.threadLock(thread.ID)
	lock.Lock()
	defer lock.Unlock()

	runCtx := ctx
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.runtime.RunTurn(runCtx, thread.ID, content)
	if err != nil {
		s.logger.Error("agent turn failed",
			"error", err,
			"thread_id", thread.ID,
			"user_id", user.ID,
			"elapsed", time.Since(start))
		return nil, ErrUpstream
	}

	s.logger.Debug("agent turn completed",
		"thread_id", thread.ID,
		"user_id", user.ID,
		"elapsed", time.Since(start))

	return &SendResult{
		ThreadID: thread.ID,
		Response: s.renderMarkdown(reply),
	}, nil
}

// GetHistory returns the reconciled transcript for a thread. The caller
// must own the thread or be a superuser. A thread with no stored turns
// yields an empty transcript, not an error.
func (s *Service) GetHistory(ctx context.Context, user *store.User, threadID string) ([]Message, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !isOwnerOrSuperuser(user, thread) {
		return nil, ErrForbidden
	}

	turns, err := s.log.Turns(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return Reconcile(turns), nil
}

// resolveThread loads an existing thread with ownership checks, or creates
// a fresh one owned by the caller when no id is given.
func (s *Service) resolveThread(ctx context.Context, user *store.User, threadID, content string) (*store.Thread, error) {
	if threadID != "" {
		thread, err := s.store.GetThread(ctx, threadID)
		if err != nil {
			return nil, err
		}
		if !isOwnerOrSuperuser(user, thread) {
			return nil, ErrForbidden
		}
		return thread, nil
	}

	now := time.Now()
	thread := &store.Thread{
		ID:        uuid.New().String(),
		Title:     titleFromContent(content),
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	s.logger.Debug("thread created", "thread_id", thread.ID, "user_id", user.ID)
	return thread, nil
}

// threadLock returns the mutex for a thread id, creating it on first use.
// Entries are never evicted; the map is bounded by the number of threads
// this process has served.
func (s *Service) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[threadID] = lock
	}
	return lock
}

func isOwnerOrSuperuser(user *store.User, thread *store.Thread) bool {
	return user.IsSuperuser || thread.UserID == user.ID
}

const titleWordLimit = 8

// titleFromContent derives a thread title from the opening words of the
// first message.
func titleFromContent(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return DefaultThreadTitle
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	title := strings.Join(words, " ")
	if r := []rune(title); len(r) > 64 {
		title = string(r[:64])
	}
	return title
}

// renderMarkdown converts the assistant reply to HTML and then replaces
// newlines with <br> tags, matching what chat clients expect to inject
// directly into the page.
func (s *Service) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		s.logger.Error("failed to render markdown", "error", err)
		return html.EscapeString(text)
	}
	return strings.ReplaceAll(buf.String(), "\n", "<br>")
}
