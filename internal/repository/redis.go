package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"workshop/internal/config"
	"workshop/internal/models"
)

const editStatePrefix = "edit_state:"

// RedisEditStateRepository keeps optimistic booking edits in Redis so that
// pending edits survive a restart and are visible to every API replica.
type RedisEditStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisEditStateRepository(client *redis.Client, ttl time.Duration) *RedisEditStateRepository {
	return &RedisEditStateRepository{
		client: client,
		ttl:    ttl,
	}
}

func editStateKey(bookingID int64) string {
	return fmt.Sprintf("%s%d", editStatePrefix, bookingID)
}

func (r *RedisEditStateRepository) GetEditState(ctx context.Context, bookingID int64) (*models.EditState, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, editStateKey(bookingID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edit state from redis: %w", err)
	}

	var state models.EditState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edit state: %w", err)
	}
	return &state, nil
}

func (r *RedisEditStateRepository) SetEditState(ctx context.Context, state *models.EditState) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal edit state: %w", err)
	}

	if err := r.client.Set(ctx, editStateKey(state.BookingID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set edit state in redis: %w", err)
	}
	return nil
}

func (r *RedisEditStateRepository) ClearEditState(ctx context.Context, bookingID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, editStateKey(bookingID)).Err(); err != nil {
		return fmt.Errorf("failed to delete edit state from redis: %w", err)
	}
	return nil
}

// ListEditStates returns every stored state ordered by booking id.
func (r *RedisEditStateRepository) ListEditStates(ctx context.Context) ([]*models.EditState, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	var states []*models.EditState
	iter := r.client.Scan(ctx, 0, editStatePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get edit state from redis: %w", err)
		}
		var state models.EditState
		if err := json.Unmarshal([]byte(val), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edit state: %w", err)
		}
		states = append(states, &state)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan edit states: %w", err)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].BookingID < states[j].BookingID })
	return states, nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the client; nil is ignored.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
