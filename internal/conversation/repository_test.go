package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/convstore"
	"github.com/chatforge/chatforge/internal/model"
)

// fakeDurable is an in-memory convstore.Store with controllable ping
// behavior for exercising the connection state machine.
type fakeDurable struct {
	mu            sync.Mutex
	pingCount     atomic.Int32
	pingErr       error
	pingDelay     time.Duration
	conversations map[string]*model.Conversation
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{conversations: make(map[string]*model.Conversation)}
}

func (f *fakeDurable) Ping(ctx context.Context) error {
	f.pingCount.Add(1)
	if f.pingDelay > 0 {
		select {
		case <-time.After(f.pingDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.pingErr
}

func (f *fakeDurable) ValidID(id string) bool { return convstore.ValidUUID(id) }

func (f *fakeDurable) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *c
	out.ID = "11111111-2222-3333-4444-555555555555"
	now := time.Now()
	out.CreatedAt, out.UpdatedAt = now, now
	f.conversations[out.ID] = &out
	return &out, nil
}

func (f *fakeDurable) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeDurable) AppendMessage(ctx context.Context, id string, m model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return model.ErrNotFound
	}
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeDurable) Rename(ctx context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return model.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeDurable) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, id)
	return nil
}

func (f *fakeDurable) ListByUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ConversationSummary
	for _, c := range f.conversations {
		if c.UserID == userID {
			out = append(out, model.ConversationSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt})
		}
	}
	return out, nil
}

func userMsg(content string) model.Message {
	return model.Message{Role: model.RoleUser, Content: content, Timestamp: time.Now()}
}

func TestEnsureConnected_CoalescesConcurrentAttempts(t *testing.T) {
	durable := newFakeDurable()
	durable.pingDelay = 50 * time.Millisecond
	repo := NewRepository(durable, zerolog.Nop())

	const callers = 16
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.EnsureConnected(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	require.EqualValues(t, 1, durable.pingCount.Load(), "concurrent callers must share one attempt")
	for ok := range results {
		require.True(t, ok)
	}
}

func TestEnsureConnected_FailureThenRetry(t *testing.T) {
	durable := newFakeDurable()
	durable.pingErr = context.DeadlineExceeded
	repo := NewRepository(durable, zerolog.Nop())

	require.False(t, repo.EnsureConnected(context.Background()))
	require.False(t, repo.Connected())

	// A later call starts a fresh attempt once the backend recovers.
	durable.pingErr = nil
	require.True(t, repo.EnsureConnected(context.Background()))
	require.EqualValues(t, 2, durable.pingCount.Load())
}

func TestEnsureConnected_NoDurableBackend(t *testing.T) {
	repo := NewRepository(nil, zerolog.Nop())
	require.False(t, repo.EnsureConnected(context.Background()))
}

// Durable backend down for the whole process lifetime: the full turn
// sequence still succeeds end-to-end on the fallback store alone.
func TestFallbackContinuity_FullSequenceWithoutDurable(t *testing.T) {
	repo := NewRepository(nil, zerolog.Nop())
	ctx := context.Background()

	c := repo.Create(ctx, "user-1", "今天天气", userMsg("今天天气怎么样"))
	require.NotNil(t, c)
	require.Equal(t, "1", c.ID, "fallback ids are counter based")

	require.NoError(t, repo.AppendMessage(ctx, c.ID, model.Message{Role: model.RoleAssistant, Content: "晴"}))

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)

	require.NoError(t, repo.Rename(ctx, c.ID, "天气小记"))
	list := repo.ListByUser(ctx, "user-1")
	require.Len(t, list, 1)
	require.Equal(t, "天气小记", list[0].Title)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.FindByID(ctx, c.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreate_DurableFirstWhenConnected(t *testing.T) {
	durable := newFakeDurable()
	repo := NewRepository(durable, zerolog.Nop())
	require.True(t, repo.EnsureConnected(context.Background()))

	c := repo.Create(context.Background(), "user-1", "标题", userMsg("hi"))
	require.True(t, durable.ValidID(c.ID), "durable ids are uuid shaped")

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestFindByID_ForeignShapedIDSkipsDurable(t *testing.T) {
	durable := newFakeDurable()
	repo := NewRepository(durable, zerolog.Nop())
	require.True(t, repo.EnsureConnected(context.Background()))

	// A counter-shaped id can only live in the fallback store.
	c := repo.CreateWithID("42", "user-1", "恢复", userMsg("hello"))
	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, "42", got.ID)
}

func TestAppendMessage_NowhereFound(t *testing.T) {
	repo := NewRepository(nil, zerolog.Nop())
	err := repo.AppendMessage(context.Background(), "missing", userMsg("x"))
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestAppendMessage_RefreshesUpdatedAt(t *testing.T) {
	repo := NewRepository(nil, zerolog.Nop())
	c := repo.Create(context.Background(), "user-1", "t", userMsg("hi"))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.AppendMessage(context.Background(), c.ID, userMsg("again")))

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.After(c.UpdatedAt))
}
