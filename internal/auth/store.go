package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StorageKey é a chave fixa do token persistido
const StorageKey = "battle_memecoin_auth_token"

// TokenStore persiste apenas o token de sessão; challenge nunca é persistido
type TokenStore interface {
	Load(ctx context.Context) (string, error) // "" quando não há token
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisStore guarda o token numa chave do Redis, sobrevivendo a reinícios do cliente
type RedisStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisStore usa StorageKey quando key é vazio; ttl 0 não expira
func NewRedisStore(rdb redis.Cmdable, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = StorageKey
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	return s.rdb.Set(ctx, s.key, token, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}
