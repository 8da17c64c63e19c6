// Package service manages named configs and serves variable snapshots
// to the execution path through a cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowbase-io/flowbase/internal/config/domain/model"
	"github.com/flowbase-io/flowbase/internal/config/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/cache"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

type ConfigService struct {
	repo  repository.Repository
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
}

func NewConfigService(repo repository.Repository, c cache.Cache, ttl time.Duration, log logger.Logger) *ConfigService {
	return &ConfigService{repo: repo, cache: c, ttl: ttl, log: log}
}

func cacheKey(id string) string { return "config:vars:" + id }

func (s *ConfigService) Create(ctx context.Context, cfg *model.Config) (*model.Config, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("config name is required")
	}
	now := time.Now().UTC()
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.Variables == nil {
		cfg.Variables = map[string]interface{}{}
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) Get(ctx context.Context, id string) (*model.Config, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ConfigService) List(ctx context.Context, limit, offset int) ([]*model.Config, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *ConfigService) Update(ctx context.Context, cfg *model.Config) (*model.Config, error) {
	existing, err := s.repo.GetByID(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, cacheKey(cfg.ID)); err != nil {
		s.log.Warn("failed to invalidate config cache", "config_id", cfg.ID, "error", err)
	}
	return cfg, nil
}

func (s *ConfigService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.log.Warn("failed to invalidate config cache", "config_id", id, "error", err)
	}
	return nil
}

// ResolveVariables returns the variable snapshot for an execution,
// reading through the cache. An empty id resolves to an empty mapping.
func (s *ConfigService) ResolveVariables(ctx context.Context, id string) (map[string]interface{}, error) {
	if id == "" {
		return map[string]interface{}{}, nil
	}

	var variables map[string]interface{}
	err := s.cache.Get(ctx, cacheKey(id), &variables)
	if err == nil {
		return variables, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("config cache read failed", "config_id", id, "error", err)
	}

	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey(id), cfg.Variables, s.ttl); err != nil {
		s.log.Warn("config cache write failed", "config_id", id, "error", err)
	}
	return cfg.Variables, nil
}
