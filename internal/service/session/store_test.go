package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
	"github.com/zhouzirui/taporibrain/internal/service/session"
)

func TestCreateSessionUniqueAndCurrent(t *testing.T) {
	store := session.NewStore()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := store.CreateSession("")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Equal(t, id, store.CurrentID())
	}

	sessions := store.Sessions()
	require.Len(t, sessions, 50)
	assert.Equal(t, session.DefaultTitle, sessions[0].Title)
}

func TestCreateSessionInsertsAtFront(t *testing.T) {
	store := session.NewStore()
	first := store.CreateSession("A")
	second := store.CreateSession("B")

	sessions := store.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)
}

func TestDeleteCurrentPromotesFirstRemaining(t *testing.T) {
	store := session.NewStore()
	s2 := store.CreateSession("S2")
	s1 := store.CreateSession("S1")
	require.Equal(t, s1, store.CurrentID())

	assert.True(t, store.DeleteSession(s1))
	assert.Equal(t, s2, store.CurrentID())

	assert.True(t, store.DeleteSession(s2))
	assert.Empty(t, store.CurrentID())
	_, ok := store.CurrentSession()
	assert.False(t, ok)
}

func TestDeleteNonCurrentKeepsSelection(t *testing.T) {
	store := session.NewStore()
	older := store.CreateSession("older")
	newer := store.CreateSession("newer")

	assert.True(t, store.DeleteSession(older))
	assert.Equal(t, newer, store.CurrentID())
}

func TestDeleteMissingIsNoop(t *testing.T) {
	store := session.NewStore()
	id := store.CreateSession("only")

	assert.False(t, store.DeleteSession("missing"))
	assert.Equal(t, id, store.CurrentID())
	assert.Len(t, store.Sessions(), 1)
}

func TestRenameSession(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store := session.NewStore(session.WithClock(func() time.Time { return clock }))
	id := store.CreateSession("Original")

	for _, blank := range []string{"", "   ", "\t\n"} {
		assert.False(t, store.RenameSession(id, blank))
	}
	got, _ := store.Session(id)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, base, got.UpdatedAt)

	clock = base.Add(time.Minute)
	assert.True(t, store.RenameSession(id, "  Renamed  "))
	got, _ = store.Session(id)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, clock, got.UpdatedAt)

	assert.False(t, store.RenameSession("missing", "x"))
}

func TestSetCurrentSessionRejectsUnknown(t *testing.T) {
	store := session.NewStore()
	a := store.CreateSession("A")
	b := store.CreateSession("B")

	require.NoError(t, store.SetCurrentSession(a))
	assert.Equal(t, a, store.CurrentID())

	err := store.SetCurrentSession("nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, a, store.CurrentID())

	require.NoError(t, store.SetCurrentSession(b))
	assert.Equal(t, b, store.CurrentID())
}

func TestAddMessageAppendsInOrder(t *testing.T) {
	store := session.NewStore()
	id := store.CreateSession("A")

	_, err := store.AddMessage(id, chat.Draft{Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = store.AddMessage(id, chat.Draft{Role: chat.RoleAssistant, Content: "hello", Agent: "Core"})
	require.NoError(t, err)

	got, ok := store.Session(id)
	require.True(t, ok)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chat.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, "Core", got.Messages[1].Agent)
	assert.NotEqual(t, got.Messages[0].ID, got.Messages[1].ID)
}

func TestAddMessageBumpsTimestampMonotonically(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store := session.NewStore(session.WithClock(func() time.Time { return clock }))
	id := store.CreateSession("A")

	for i := 1; i <= 5; i++ {
		before, _ := store.Session(id)
		clock = base.Add(time.Duration(i) * time.Second)
		_, err := store.AddMessage(id, chat.Draft{Role: chat.RoleUser, Content: "x"})
		require.NoError(t, err)

		after, _ := store.Session(id)
		assert.Len(t, after.Messages, len(before.Messages)+1)
		assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	}

	// a clock stepping backwards must not rewind UpdatedAt
	before, _ := store.Session(id)
	clock = base.Add(-time.Hour)
	_, err := store.AddMessage(id, chat.Draft{Role: chat.RoleUser, Content: "late"})
	require.NoError(t, err)
	after, _ := store.Session(id)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestAddMessageMissingSession(t *testing.T) {
	store := session.NewStore()
	store.CreateSession("A")
	version := store.Snapshot().Version

	_, err := store.AddMessage("missing", chat.Draft{Role: chat.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, version, store.Snapshot().Version)
}

func TestUpdateMessage(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store := session.NewStore(session.WithClock(func() time.Time { return clock }))
	id := store.CreateSession("A")
	msg, err := store.AddMessage(id, chat.Draft{Role: chat.RoleAssistant, Content: "hello"})
	require.NoError(t, err)

	clock = base.Add(time.Minute)
	agent := "Planner"
	require.NoError(t, store.UpdateMessage(id, msg.ID, chat.Patch{Agent: &agent, Emotions: []string{"love"}}))

	got, _ := store.Session(id)
	assert.Equal(t, "Planner", got.Messages[0].Agent)
	assert.Equal(t, []string{"love"}, got.Messages[0].Emotions)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, clock, got.UpdatedAt)

	clock = base.Add(time.Hour)
	err = store.UpdateMessage(id, "missing", chat.Patch{Agent: &agent})
	assert.ErrorIs(t, err, session.ErrMessageNotFound)
	got, _ = store.Session(id)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt, "miss must not bump the timestamp")

	assert.ErrorIs(t, store.UpdateMessage("missing", msg.ID, chat.Patch{}), session.ErrSessionNotFound)
}

func TestEnsureSession(t *testing.T) {
	store := session.NewStore()
	id := store.EnsureSession(session.WelcomeTitle)

	got, ok := store.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, session.WelcomeTitle, got.Title)

	assert.Equal(t, id, store.EnsureSession(session.WelcomeTitle))
	assert.Len(t, store.Sessions(), 1)
}

func TestSnapshotsDoNotAliasState(t *testing.T) {
	store := session.NewStore()
	id := store.CreateSession("A")
	_, err := store.AddMessage(id, chat.Draft{Role: chat.RoleUser, Content: "hi", Emotions: []string{"happy"}})
	require.NoError(t, err)

	got, _ := store.Session(id)
	got.Title = "mutated"
	got.Messages[0].Content = "mutated"
	got.Messages[0].Emotions[0] = "mutated"

	fresh, _ := store.Session(id)
	assert.Equal(t, "A", fresh.Title)
	assert.Equal(t, "hi", fresh.Messages[0].Content)
	assert.Equal(t, "happy", fresh.Messages[0].Emotions[0])
}

func TestObserversReceiveEveryMutation(t *testing.T) {
	store := session.NewStore()

	var snaps []session.Snapshot
	unsubscribe := store.Subscribe(func(s session.Snapshot) {
		snaps = append(snaps, s)
	})

	id := store.CreateSession("A")
	_, err := store.AddMessage(id, chat.Draft{Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	store.SetLoading(true)
	store.SetLoading(true)
	store.RenameSession(id, "B")

	require.Len(t, snaps, 4)
	assert.Equal(t, id, snaps[0].CurrentID)
	assert.Len(t, snaps[1].Sessions[0].Messages, 1)
	assert.True(t, snaps[2].Loading)
	assert.Equal(t, "B", snaps[3].Sessions[0].Title)
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Version, snaps[i-1].Version)
	}

	unsubscribe()
	unsubscribe()
	store.CreateSession("C")
	assert.Len(t, snaps, 4)
}

func TestSnapshotCurrent(t *testing.T) {
	store := session.NewStore()
	id := store.CreateSession("A")

	current, ok := store.Snapshot().Current()
	require.True(t, ok)
	assert.Equal(t, id, current.ID)

	store.DeleteSession(id)
	_, ok = store.Snapshot().Current()
	assert.False(t, ok)
}
