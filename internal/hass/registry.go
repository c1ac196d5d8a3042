package hass

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/argus/internal/domain"
)

// EntityRegistry resolves Home Assistant entity registry entries.
type EntityRegistry interface {
	GetEntity(ctx context.Context, client Client, entityID string) (domain.Entity, error)
	GetMatchingEntities(ctx context.Context, client Client, match func(domain.Entity) bool) ([]domain.Entity, error)
	Suggest(ctx context.Context, client Client, entityID string) []string
}

type entityGetRequest struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
}

type entityListRequest struct {
	Type string `json:"type"`
}

const maxSuggestions = 3

// Registry caches entity registry lookups in memory and, when a store is
// set, across runs.
type Registry struct {
	store  domain.Store
	logger *slog.Logger

	mu         sync.RWMutex
	entities   map[string]domain.Entity
	fetchedAll bool
}

// NewRegistry creates a registry manager. store may be nil.
func NewRegistry(store domain.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		logger:   logger,
		entities: make(map[string]domain.Entity),
	}
}

// GetEntity returns the registry entry for entityID.
func (r *Registry) GetEntity(ctx context.Context, client Client, entityID string) (domain.Entity, error) {
	r.mu.RLock()
	entity, ok := r.entities[entityID]
	r.mu.RUnlock()
	if ok {
		return entity, nil
	}

	if r.store != nil {
		if entity, ok := r.store.GetEntity(entityID); ok {
			r.remember(entity)
			return entity, nil
		}
	}

	entity, err := Call[domain.Entity](ctx, client, entityGetRequest{
		Type:     "config/entity_registry/get",
		EntityID: entityID,
	})
	if err != nil {
		if IsNotFound(err) {
			return domain.Entity{}, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, entityID)
		}
		return domain.Entity{}, fmt.Errorf("failed to fetch entity %s: %w", entityID, err)
	}

	r.remember(entity)
	r.persist([]domain.Entity{entity})
	return entity, nil
}

// GetMatchingEntities returns every registry entry for which match is true.
// The full registry is fetched once and then served from memory.
func (r *Registry) GetMatchingEntities(ctx context.Context, client Client, match func(domain.Entity) bool) ([]domain.Entity, error) {
	if err := r.fetchAll(ctx, client); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Entity
	for _, entity := range r.entities {
		if match(entity) {
			out = append(out, entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

// Suggest returns the registry entity IDs closest to a mistyped entityID.
func (r *Registry) Suggest(ctx context.Context, client Client, entityID string) []string {
	if err := r.fetchAll(ctx, client); err != nil {
		r.logger.Debug("entity suggestions unavailable", "error", err)
		return nil
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	return closestEntityIDs(entityID, ids)
}

// Invalidate drops cached entries so the next lookup refetches.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.entities = make(map[string]domain.Entity)
	r.fetchedAll = false
	r.mu.Unlock()
}

func (r *Registry) fetchAll(ctx context.Context, client Client) error {
	r.mu.RLock()
	done := r.fetchedAll
	r.mu.RUnlock()
	if done {
		return nil
	}

	entities, err := Call[[]domain.Entity](ctx, client, entityListRequest{Type: "config/entity_registry/list"})
	if err != nil {
		return fmt.Errorf("failed to list entity registry: %w", err)
	}

	r.mu.Lock()
	for _, entity := range entities {
		r.entities[entity.EntityID] = entity
	}
	r.fetchedAll = true
	r.mu.Unlock()

	r.logger.Debug("entity registry loaded", "count", len(entities))
	r.persist(entities)
	return nil
}

func (r *Registry) remember(entity domain.Entity) {
	r.mu.Lock()
	r.entities[entity.EntityID] = entity
	r.mu.Unlock()
}

func (r *Registry) persist(entities []domain.Entity) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveEntities(entities); err != nil {
		r.logger.Warn("failed to persist entities", "error", err)
	}
}

// closestEntityIDs ranks candidates by match quality. Lower score is better.
func closestEntityIDs(query string, candidates []string) []string {
	query = strings.ToLower(query)

	type ranked struct {
		id    string
		score int
	}
	var scored []ranked
	for _, id := range candidates {
		lower := strings.ToLower(id)
		var score int
		switch {
		case lower == query:
			continue
		case fuzzy.MatchFold(query, lower):
			score = 10 + len(lower) - len(query)
		default:
			distance := fuzzy.LevenshteinDistance(query, lower)
			if distance > len(query)/2 {
				continue
			}
			score = 100 + distance
		}
		scored = append(scored, ranked{id: id, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score < scored[j].score
		}
		return scored[i].id < scored[j].id
	})

	out := make([]string, 0, maxSuggestions)
	for i := 0; i < len(scored) && i < maxSuggestions; i++ {
		out = append(out, scored[i].id)
	}
	return out
}
