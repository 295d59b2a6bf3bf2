// ABOUTME: Tests for the conversation gateway service
// ABOUTME: Covers thread resolution, ownership, rendering, and turn serialization

package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarch/parley/internal/checkpoint"
	"github.com/lunarch/parley/internal/store"
)

// stubRuntime satisfies agent.Runtime without touching a model provider.
type stubRuntime struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	threads  []string
}

func (r *stubRuntime) RunTurn(ctx context.Context, threadID, userText string) (string, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if cur <= seen || r.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.threads = append(r.threads, threadID)
	r.mu.Unlock()

	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

type testEnv struct {
	svc     *Service
	store   *store.SQLiteStore
	log     *checkpoint.SQLiteLog
	runtime *stubRuntime
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(dir, "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log, err := checkpoint.NewSQLiteLog(filepath.Join(dir, "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	runtime := &stubRuntime{reply: "hello there"}
	return &testEnv{
		svc:     New(st, runtime, log, 0, nil),
		store:   st,
		log:     log,
		runtime: runtime,
	}
}

func (e *testEnv) createUser(t *testing.T, superuser bool) *store.User {
	t.Helper()
	user := &store.User{
		ID:          uuid.New().String(),
		Email:       uuid.New().String() + "@example.com",
		IsActive:    true,
		IsSuperuser: superuser,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) createThread(t *testing.T, owner *store.User) *store.Thread {
	t.Helper()
	thread := &store.Thread{
		ID:        uuid.New().String(),
		Title:     "existing",
		UserID:    owner.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, e.store.CreateThread(context.Background(), thread))
	return thread
}

func TestSendMessage_BlankContent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)

	_, err := env.svc.SendMessage(context.Background(), user, "", "   \n\t ")
	assert.ErrorIs(t, err, ErrBlankContent)
}

func TestSendMessage_AutoCreatesThread(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)

	result, err := env.svc.SendMessage(context.Background(), user, "", "what is the capital of France?")
	require.NoError(t, err)
	require.NotEmpty(t, result.ThreadID)

	thread, err := env.store.GetThread(context.Background(), result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, thread.UserID)
	assert.Equal(t, "what is the capital of France?", thread.Title)

	require.Len(t, env.runtime.threads, 1)
	assert.Equal(t, result.ThreadID, env.runtime.threads[0])
}

func TestSendMessage_ExistingThread(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	result, err := env.svc.SendMessage(context.Background(), user, thread.ID, "continue please")
	require.NoError(t, err)
	assert.Equal(t, thread.ID, result.ThreadID)

	count, err := env.store.CountThreads(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSendMessage_ThreadNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)

	_, err := env.svc.SendMessage(context.Background(), user, uuid.New().String(), "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendMessage_ForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, false)
	other := env.createUser(t, false)
	thread := env.createThread(t, owner)

	_, err := env.svc.SendMessage(context.Background(), other, thread.ID, "hello")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, env.runtime.threads)
}

func TestSendMessage_SuperuserBypassesOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, false)
	admin := env.createUser(t, true)
	thread := env.createThread(t, owner)

	result, err := env.svc.SendMessage(context.Background(), admin, thread.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, thread.ID, result.ThreadID)
}

func TestSendMessage_UpstreamErrorIsOpaque(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.err = errors.New("provider exploded: api key sk-secret")
	user := env.createUser(t, false)

	_, err := env.svc.SendMessage(context.Background(), user, "", "hello")
	require.ErrorIs(t, err, ErrUpstream)
	assert.NotContains(t, err.Error(), "sk-secret")

	// The auto-created thread survives the failure.
	count, countErr := env.store.CountThreads(context.Background(), user.ID)
	require.NoError(t, countErr)
	assert.Equal(t, 1, count)
}

func TestSendMessage_RendersMarkdown(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.reply = "**Paris** is the capital.\nPopulation: 2 million."
	user := env.createUser(t, false)

	result, err := env.svc.SendMessage(context.Background(), user, "", "capital of France?")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "<strong>Paris</strong>")
	assert.Contains(t, result.Response, "<br>")
	assert.NotContains(t, result.Response, "\n")
}

func TestSendMessage_SerializesPerThread(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.delay = 20 * time.Millisecond
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.SendMessage(context.Background(), user, thread.ID, "ping")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), env.runtime.maxSeen.Load(), "turns on one thread must not overlap")
	assert.Len(t, env.runtime.threads, 4)
}

func TestGetHistory_NotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)

	_, err := env.svc.GetHistory(context.Background(), user, uuid.New().String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetHistory_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, false)
	other := env.createUser(t, false)
	thread := env.createThread(t, owner)

	_, err := env.svc.GetHistory(context.Background(), other, thread.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetHistory_EmptyThread(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	msgs, err := env.svc.GetHistory(context.Background(), user, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestGetHistory_FiltersToolTurns(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	appendTurn := func(kind checkpoint.Kind, content, toolCalls string) {
		require.NoError(t, env.log.Append(context.Background(), &checkpoint.Turn{
			ID:            uuid.New().String(),
			ThreadKey:     thread.ID,
			Kind:          kind,
			Content:       content,
			ToolCallsJSON: toolCalls,
		}))
	}
	appendTurn(checkpoint.KindUser, "what time is it?", "")
	appendTurn(checkpoint.KindAssistant, "", `[{"id":"1","name":"current_time","input":{}}]`)
	appendTurn(checkpoint.KindToolResult, "noon", "")
	appendTurn(checkpoint.KindAssistant, "It is noon.", "")

	msgs, err := env.svc.GetHistory(context.Background(), user, thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleHuman, Content: "what time is it?"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAI, Content: "It is noon."}, msgs[1])
}

func TestGetHistory_RepeatedReadsIdentical(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	for i, content := range []string{"hi", "hello!", "how are you?"} {
		kind := checkpoint.KindUser
		if i%2 == 1 {
			kind = checkpoint.KindAssistant
		}
		require.NoError(t, env.log.Append(context.Background(), &checkpoint.Turn{
			ID:        uuid.New().String(),
			ThreadKey: thread.ID,
			Kind:      kind,
			Content:   content,
		}))
	}

	first, err := env.svc.GetHistory(context.Background(), user, thread.ID)
	require.NoError(t, err)
	second, err := env.svc.GetHistory(context.Background(), user, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeleteUser_CheckpointTurnsSurvive(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)
	thread := env.createThread(t, user)

	require.NoError(t, env.log.Append(context.Background(), &checkpoint.Turn{
		ID:        uuid.New().String(),
		ThreadKey: thread.ID,
		Kind:      checkpoint.KindUser,
		Content:   "remember this",
	}))

	// Deleting the user cascades its threads in the identity store, but
	// the two stores share nothing except the thread-id string.
	require.NoError(t, env.store.DeleteUser(context.Background(), user.ID))
	_, err := env.store.GetThread(context.Background(), thread.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	turns, err := env.log.Turns(context.Background(), thread.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "remember this", turns[0].Content)

	// The orphaned sequence is unreachable through the gateway.
	_, err = env.svc.GetHistory(context.Background(), user, thread.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetHistory_SuperuserReadsAnyThread(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, false)
	admin := env.createUser(t, true)
	thread := env.createThread(t, owner)

	_, err := env.svc.GetHistory(context.Background(), admin, thread.ID)
	assert.NoError(t, err)
}

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "hello there", "hello there"},
		{"whitespace collapsed", "  hello \n there  ", "hello there"},
		{"word limit", "one two three four five six seven eight nine ten", "one two three four five six seven eight"},
		{"blank", "   ", DefaultThreadTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromContent(tt.content))
		})
	}
}

func TestTitleFromContent_TruncatesLongWords(t *testing.T) {
	title := titleFromContent(strings.Repeat("a", 200))
	assert.Equal(t, 64, len([]rune(title)))
}

func TestTurnTimeout(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, false)

	timeoutRuntime := &contextCheckRuntime{}
	svc := New(env.store, timeoutRuntime, env.log, 30*time.Second, nil)

	_, err := svc.SendMessage(context.Background(), user, "", "hello")
	require.NoError(t, err)
	require.True(t, timeoutRuntime.hadDeadline, "runtime should see a deadline")
}

type contextCheckRuntime struct {
	hadDeadline bool
}

func (r *contextCheckRuntime) RunTurn(ctx context.Context, threadID, userText string) (string, error) {
	_, r.hadDeadline = ctx.Deadline()
	if threadID == "" {
		return "", fmt.Errorf("missing thread id")
	}
	return "ok", nil
}
