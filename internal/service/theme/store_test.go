package theme_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/appearance"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
	"github.com/zhouzirui/taporibrain/internal/storage/kv"
)

func TestDefaultsToSystem(t *testing.T) {
	store, err := theme.New(context.Background(), kv.NewMemory(), appearance.Static(true), nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, theme.State{Preference: theme.System, Effective: theme.Dark}, store.State())
}

func TestInvalidStoredValueFallsBackToSystem(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, theme.StorageKey, "purple"))

	store, err := theme.New(ctx, mem, appearance.Static(false), nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, theme.System, store.State().Preference)
	assert.Equal(t, theme.Light, store.State().Effective)
}

func TestSetPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	store, err := theme.New(ctx, mem, appearance.Static(false), nil)
	require.NoError(t, err)
	defer store.Close()

	var states []theme.State
	store.Subscribe(func(s theme.State) { states = append(states, s) })

	require.NoError(t, store.Set(ctx, theme.Dark))

	raw, err := mem.Get(ctx, theme.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "dark", raw)
	require.Len(t, states, 1)
	assert.Equal(t, theme.Dark, states[0].Effective)

	assert.ErrorIs(t, store.Set(ctx, theme.Preference("sepia")), theme.ErrInvalidPreference)
	assert.Len(t, states, 1)
}

func TestPersistenceRoundTripThroughSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	store, err := theme.New(ctx, db, appearance.Static(false), nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, theme.Dark))
	store.Close()
	require.NoError(t, db.Close())

	db, err = kv.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	reloaded, err := theme.New(ctx, db, appearance.Static(false), nil)
	require.NoError(t, err)
	defer reloaded.Close()

	assert.Equal(t, theme.Dark, reloaded.State().Preference)
}

func TestSystemChangeReResolves(t *testing.T) {
	ctx := context.Background()
	sw := appearance.NewSwitch(false)
	store, err := theme.New(ctx, kv.NewMemory(), sw, nil)
	require.NoError(t, err)
	defer store.Close()

	var states []theme.State
	store.Subscribe(func(s theme.State) { states = append(states, s) })

	sw.Set(true)
	require.Len(t, states, 1)
	assert.Equal(t, theme.Dark, states[0].Effective)

	require.NoError(t, store.Set(ctx, theme.Light))
	sw.Set(false)
	sw.Set(true)
	assert.Len(t, states, 2, "explicit preference ignores system changes")
	assert.Equal(t, theme.Light, store.State().Effective)
}

func TestToggleFlipsEffectiveTheme(t *testing.T) {
	ctx := context.Background()
	store, err := theme.New(ctx, kv.NewMemory(), appearance.Static(true), nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Toggle(ctx))
	assert.Equal(t, theme.Light, store.State().Preference)
	require.NoError(t, store.Toggle(ctx))
	assert.Equal(t, theme.Dark, store.State().Preference)
}

// slowKV stalls writes so concurrent Sets overlap.
type slowKV struct {
	*kv.Memory
}

func (s slowKV) Set(ctx context.Context, key, value string) error {
	if value == string(theme.Dark) {
		time.Sleep(5 * time.Millisecond)
	}
	return s.Memory.Set(ctx, key, value)
}

func TestConcurrentSetsKeepStorageAndStateInStep(t *testing.T) {
	backing := slowKV{Memory: kv.NewMemory()}
	store, err := theme.New(context.Background(), backing, appearance.Static(false), nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for _, pref := range []theme.Preference{theme.Dark, theme.Light} {
			wg.Add(1)
			go func(p theme.Preference) {
				defer wg.Done()
				assert.NoError(t, store.Set(context.Background(), p))
			}(pref)
		}
		wg.Wait()

		persisted, err := backing.Get(context.Background(), theme.StorageKey)
		require.NoError(t, err)
		require.Equal(t, string(store.State().Preference), persisted, "round %d", round)
	}
}

func TestParsePreference(t *testing.T) {
	p, err := theme.ParsePreference(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, theme.Dark, p)

	_, err = theme.ParsePreference("")
	assert.ErrorIs(t, err, theme.ErrInvalidPreference)
}
