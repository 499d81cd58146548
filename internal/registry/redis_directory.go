package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxmeet/voxmeet/internal/config"
	pkglog "github.com/voxmeet/voxmeet/pkg/log"
)

// RedisDirectory implements RoomDirectory on Redis. Keys carry a TTL and are
// refreshed by a heartbeat so a crashed instance's advertisements expire on
// their own.
type RedisDirectory struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisDirectory(client *redis.Client, cfg config.RedisConfig, advertiseAddress string) *RedisDirectory {
	return &RedisDirectory{
		client:            client,
		advertiseAddress:  advertiseAddress,
		prefix:            cfg.DirectoryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (r *RedisDirectory) keyFor(roomID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, roomID)
}

func (r *RedisDirectory) Register(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	logger := pkglog.L()
	logger.Info().Str(pkglog.FieldMeetingID, roomID).Str("address", r.advertiseAddress).Msg("registered room")
	return nil
}

func (r *RedisDirectory) Deregister(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister room: %w", err)
	}

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	logger := pkglog.L()
	logger.Info().Str(pkglog.FieldMeetingID, roomID).Msg("deregistered room")
	return nil
}

func (r *RedisDirectory) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	logger := pkglog.L()
	logger.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("directory heartbeat started")
	return nil
}

func (r *RedisDirectory) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisDirectory) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
			logger := pkglog.L()
			logger.Error().Str("key", key).Err(err).Msg("failed to refresh directory key")
		}
	}
}

func (r *RedisDirectory) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisDirectory) Close() error {
	r.StopHeartbeat()
	return nil
}

// NoopDirectory is used when no Redis is configured.
type NoopDirectory struct{}

func (NoopDirectory) Register(context.Context, string) error   { return nil }
func (NoopDirectory) Deregister(context.Context, string) error { return nil }
func (NoopDirectory) StartHeartbeat(context.Context) error     { return nil }
func (NoopDirectory) StopHeartbeat()                           {}
func (NoopDirectory) Close() error                             { return nil }
