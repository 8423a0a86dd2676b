package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/service/admin"
	"github.com/zhouzirui/taporibrain/internal/service/notify"
)

type fakeBackend struct {
	statsErr  error
	updateErr error
	updates   map[string]any
}

func (f *fakeBackend) GetAdminConfig(context.Context) (client.AdminConfig, error) {
	return client.AdminConfig{"model": "echo", "temperature": 0.7}, nil
}

func (f *fakeBackend) UpdateAdminConfig(_ context.Context, key string, value any) (*client.Ack, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updates == nil {
		f.updates = map[string]any{}
	}
	f.updates[key] = value
	return &client.Ack{OK: true}, nil
}

func (f *fakeBackend) GetAdminStats(context.Context) (*client.AdminStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &client.AdminStats{Environment: "development", ActiveSessions: 1}, nil
}

func (f *fakeBackend) GetFeatureFlags(context.Context) (client.FeatureFlags, error) {
	return client.FeatureFlags{"voice": true}, nil
}

func (f *fakeBackend) UpdateFeatureFlag(_ context.Context, key string, value bool) (*client.Ack, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &client.Ack{OK: true}, nil
}

func TestLoadAndUpdate(t *testing.T) {
	toasts := notify.NewFeed(0)
	svc := admin.NewService(&fakeBackend{}, toasts, nil)
	ctx := context.Background()

	_, loaded := svc.Dashboard()
	assert.False(t, loaded)

	d, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo", d.Config.Model())
	assert.Equal(t, "development", d.Stats.Environment)
	assert.True(t, d.Features["voice"])

	require.NoError(t, svc.UpdateConfig(ctx, "temperature", 0.2))
	require.NoError(t, svc.UpdateFeature(ctx, "voice", false))

	d, loaded = svc.Dashboard()
	require.True(t, loaded)
	assert.InDelta(t, 0.2, d.Config.Temperature(), 1e-9)
	assert.False(t, d.Features["voice"])

	recent := toasts.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "temperature has been updated successfully", recent[0].Description)
	assert.Equal(t, "voice has been disabled", recent[1].Description)
}

func TestLoadFailureKeepsPreviousData(t *testing.T) {
	backend := &fakeBackend{}
	toasts := notify.NewFeed(0)
	svc := admin.NewService(backend, toasts, nil)
	ctx := context.Background()

	_, err := svc.Load(ctx)
	require.NoError(t, err)

	backend.statsErr = errors.New("down")
	_, err = svc.Load(ctx)
	require.Error(t, err)

	d, loaded := svc.Dashboard()
	assert.True(t, loaded)
	assert.Equal(t, "development", d.Stats.Environment)
	assert.Equal(t, "Failed to load admin data", toasts.Recent()[0].Description)
}

func TestUpdateFailureLeavesLocalState(t *testing.T) {
	backend := &fakeBackend{}
	svc := admin.NewService(backend, nil, nil)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	backend.updateErr = errors.New("denied")
	assert.Error(t, svc.UpdateConfig(ctx, "model", "other"))
	assert.Error(t, svc.UpdateFeature(ctx, "voice", false))

	d, _ := svc.Dashboard()
	assert.Equal(t, "echo", d.Config.Model())
	assert.True(t, d.Features["voice"])
}

func TestDashboardIsACopy(t *testing.T) {
	svc := admin.NewService(&fakeBackend{}, nil, nil)
	d, err := svc.Load(context.Background())
	require.NoError(t, err)

	d.Config["model"] = "mutated"
	d.Features["voice"] = false

	again, _ := svc.Dashboard()
	assert.Equal(t, "echo", again.Config.Model())
	assert.True(t, again.Features["voice"])
}
