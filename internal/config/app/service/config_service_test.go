package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbase-io/flowbase/internal/config/domain/model"
	"github.com/flowbase-io/flowbase/internal/config/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/cache"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

type stubRepo struct {
	byID  map[string]*model.Config
	reads int
}

func (s *stubRepo) Create(_ context.Context, cfg *model.Config) error {
	s.byID[cfg.ID] = cfg
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*model.Config, error) {
	s.reads++
	cfg, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cfg, nil
}

func (s *stubRepo) List(context.Context, int, int) ([]*model.Config, error) { return nil, nil }

func (s *stubRepo) Update(_ context.Context, cfg *model.Config) error {
	s.byID[cfg.ID] = cfg
	return nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

func newTestService(repo *stubRepo) *ConfigService {
	return NewConfigService(repo, cache.NewMemory(), time.Minute, logger.NewNop())
}

func TestConfigService_ResolveVariables(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{byID: map[string]*model.Config{
		"cfg-1": {ID: "cfg-1", Name: "prod", Variables: map[string]interface{}{"apiUrl": "https://x"}},
	}}
	svc := newTestService(repo)

	t.Run("empty id resolves to empty mapping", func(t *testing.T) {
		vars, err := svc.ResolveVariables(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, vars)
		assert.Zero(t, repo.reads)
	})

	t.Run("reads through cache", func(t *testing.T) {
		vars, err := svc.ResolveVariables(ctx, "cfg-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"apiUrl": "https://x"}, vars)
		assert.Equal(t, 1, repo.reads)

		_, err = svc.ResolveVariables(ctx, "cfg-1")
		require.NoError(t, err)
		assert.Equal(t, 1, repo.reads)
	})

	t.Run("unknown id surfaces not found", func(t *testing.T) {
		_, err := svc.ResolveVariables(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestConfigService_UpdateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{byID: map[string]*model.Config{
		"cfg-1": {ID: "cfg-1", Name: "prod", Variables: map[string]interface{}{"v": "old"}},
	}}
	svc := newTestService(repo)

	_, err := svc.ResolveVariables(ctx, "cfg-1")
	require.NoError(t, err)

	updated := &model.Config{ID: "cfg-1", Name: "prod", Variables: map[string]interface{}{"v": "new"}}
	_, err = svc.Update(ctx, updated)
	require.NoError(t, err)

	vars, err := svc.ResolveVariables(ctx, "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, "new", vars["v"])
}

func TestConfigService_CreateDefaults(t *testing.T) {
	repo := &stubRepo{byID: map[string]*model.Config{}}
	svc := newTestService(repo)

	cfg, err := svc.Create(context.Background(), &model.Config{Name: "dev"})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.NotNil(t, cfg.Variables)

	_, err = svc.Create(context.Background(), &model.Config{})
	assert.Error(t, err)
}
