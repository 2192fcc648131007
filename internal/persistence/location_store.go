package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

const crewLocationsKey = "crew:locations"

// CrewPosition is the latest reported position of a crew.
type CrewPosition struct {
	Location domain.Coordinate `json:"location"`
	At       time.Time         `json:"at"`
}

// LocationStore caches live crew positions between database writes.
type LocationStore interface {
	// Put records pos unless a newer position is already stored.
	Put(ctx context.Context, crewID string, pos CrewPosition) error
	All(ctx context.Context) (map[string]CrewPosition, error)
}

type redisLocationStore struct {
	client *redis.Client
}

// NewRedisLocationStore stores positions in a single Redis hash.
func NewRedisLocationStore(client *redis.Client) LocationStore {
	return &redisLocationStore{client: client}
}

func (s *redisLocationStore) Put(ctx context.Context, crewID string, pos CrewPosition) error {
	encoded, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, crewLocationsKey, crewID).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var current CrewPosition
			if json.Unmarshal(raw, &current) == nil && current.At.After(pos.At) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, crewLocationsKey, crewID, encoded)
			return nil
		})
		return err
	}, crewLocationsKey)
}

func (s *redisLocationStore) All(ctx context.Context) (map[string]CrewPosition, error) {
	raw, err := s.client.HGetAll(ctx, crewLocationsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]CrewPosition, len(raw))
	for crewID, value := range raw {
		var pos CrewPosition
		if err := json.Unmarshal([]byte(value), &pos); err != nil {
			continue
		}
		out[crewID] = pos
	}
	return out, nil
}

type memoryLocationStore struct {
	mu        sync.RWMutex
	positions map[string]CrewPosition
}

// NewMemoryLocationStore keeps positions in process memory.
func NewMemoryLocationStore() LocationStore {
	return &memoryLocationStore{positions: map[string]CrewPosition{}}
}

func (s *memoryLocationStore) Put(_ context.Context, crewID string, pos CrewPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.positions[crewID]; ok && current.At.After(pos.At) {
		return nil
	}
	s.positions[crewID] = pos
	return nil
}

func (s *memoryLocationStore) All(_ context.Context) (map[string]CrewPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CrewPosition, len(s.positions))
	for id, pos := range s.positions {
		out[id] = pos
	}
	return out, nil
}
