package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leaderboardkit/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"LEADERBOARD_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" env:"LEADERBOARD_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"LEADERBOARD_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// KeyPrefix namespaces every stored identifier.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	// TTL expires stored identifiers. Zero keeps them forever.
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"LEADERBOARD_REDIS_TTL"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    DefaultKeyPrefix,
	}
}

// DefaultKeyPrefix is used when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "lbk:device:"

// Store implements engine.IdentifierStore using Redis as the backend.
// Data structure:
// - {prefix}{name} -> JSON record {value, saved_at}
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a new Redis-backed store with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client)
	if config.KeyPrefix != "" {
		s.prefix = config.KeyPrefix
	}
	s.ttl = config.TTL
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: DefaultKeyPrefix}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

type record struct {
	Value   string    `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Load returns the identifier stored under name, or engine.ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", engine.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load identifier: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to decode identifier: %w", err)
	}
	return rec.Value, nil
}

// Save stores value under name, replacing any previous value.
func (s *Store) Save(ctx context.Context, name, value string) error {
	data, err := json.Marshal(record{Value: value, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save identifier: %w", err)
	}
	return nil
}

// Delete removes the identifier. Deleting a missing name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete identifier: %w", err)
	}
	return nil
}

// HealthCheck performs a health check on the Redis connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ engine.IdentifierStore = (*Store)(nil)
