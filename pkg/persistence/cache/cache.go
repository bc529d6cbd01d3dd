// Package cache provides a Redis read-through cache in front of another
// persistence implementation. Only the hot read paths of rule evaluation are
// cached: active workflows and enabled automation rules. Writes to either
// collection invalidate the cached list explicitly, never by TTL alone.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/persistence"
)

const (
	workflowsKey = "approvals:cache:workflows:active"
	rulesKey     = "approvals:cache:rules:enabled"

	// defaultTTL bounds staleness if an invalidation is lost, e.g. when a
	// writer crashes between the store write and the cache delete.
	defaultTTL = 5 * time.Minute
)

// Persistence decorates another persistence with cached workflow and rule
// reads. All other repositories pass through untouched.
type Persistence struct {
	persistence.Persistence

	workflows *workflowRepository
	rules     *ruleRepository
}

// NewPersistence wraps next with a Redis cache on the given client.
func NewPersistence(next persistence.Persistence, client redis.UniversalClient, logger *slog.Logger) *Persistence {
	cacheLogger := logger.With("module", "persistence_cache")

	return &Persistence{
		Persistence: next,
		workflows: &workflowRepository{
			WorkflowRepository: next.Workflows(),
			client:             client,
			logger:             cacheLogger,
		},
		rules: &ruleRepository{
			AutomationRuleRepository: next.AutomationRules(),
			client:                   client,
			logger:                   cacheLogger,
		},
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) AutomationRules() persistence.AutomationRuleRepository {
	return p.rules
}

type workflowRepository struct {
	persistence.WorkflowRepository

	client redis.UniversalClient
	logger *slog.Logger
}

func (r *workflowRepository) ListActive(ctx context.Context) ([]*models.ApprovalWorkflow, error) {
	cached, err := readCached[models.ApprovalWorkflow](ctx, r.client, workflowsKey)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, redis.Nil) {
		// Cache trouble degrades to the underlying store.
		r.logger.WarnContext(ctx, "Workflow cache read failed", "error", err)
	}

	workflows, err := r.WorkflowRepository.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	writeCached(ctx, r.client, r.logger, workflowsKey, workflows)

	return workflows, nil
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.ApprovalWorkflow) error {
	if err := r.WorkflowRepository.Save(ctx, workflow); err != nil {
		return err
	}

	invalidate(ctx, r.client, r.logger, workflowsKey)

	return nil
}

func (r *workflowRepository) Delete(ctx context.Context, id string) error {
	if err := r.WorkflowRepository.Delete(ctx, id); err != nil {
		return err
	}

	invalidate(ctx, r.client, r.logger, workflowsKey)

	return nil
}

type ruleRepository struct {
	persistence.AutomationRuleRepository

	client redis.UniversalClient
	logger *slog.Logger
}

func (r *ruleRepository) ListEnabled(ctx context.Context) ([]*models.AutomationRule, error) {
	cached, err := readCached[models.AutomationRule](ctx, r.client, rulesKey)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, redis.Nil) {
		r.logger.WarnContext(ctx, "Rule cache read failed", "error", err)
	}

	rules, err := r.AutomationRuleRepository.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	writeCached(ctx, r.client, r.logger, rulesKey, rules)

	return rules, nil
}

func (r *ruleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	if err := r.AutomationRuleRepository.Save(ctx, rule); err != nil {
		return err
	}

	invalidate(ctx, r.client, r.logger, rulesKey)

	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	if err := r.AutomationRuleRepository.Delete(ctx, id); err != nil {
		return err
	}

	invalidate(ctx, r.client, r.logger, rulesKey)

	return nil
}

func readCached[T any](ctx context.Context, client redis.UniversalClient, key string) ([]*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var items []*T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	return items, nil
}

func writeCached[T any](ctx context.Context, client redis.UniversalClient, logger *slog.Logger, key string, items []*T) {
	data, err := json.Marshal(items)
	if err != nil {
		logger.WarnContext(ctx, "Cache marshal failed", "key", key, "error", err)

		return
	}

	if err := client.Set(ctx, key, data, defaultTTL).Err(); err != nil {
		logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func invalidate(ctx context.Context, client redis.UniversalClient, logger *slog.Logger, key string) {
	if err := client.Del(ctx, key).Err(); err != nil {
		logger.WarnContext(ctx, "Cache invalidation failed", "key", key, "error", err)
	}
}
