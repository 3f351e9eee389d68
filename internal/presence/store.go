package presence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const peerSetTTL = 24 * time.Hour

// Store mirrors room membership so it can be observed outside the signaling
// process (room info API, ops tooling). The in-memory registry stays
// authoritative; mirror writes are best effort.
type Store interface {
	AddPeer(ctx context.Context, roomID, peerID string) error
	RemovePeer(ctx context.Context, roomID, peerID string) error
	Count(ctx context.Context, roomID string) (int, error)
}

// RedisStore implements Store using a per-room Redis set.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore builds a Redis-backed presence mirror.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func peersKey(roomID string) string {
	return "room:" + roomID + ":peers"
}

func (s *RedisStore) AddPeer(ctx context.Context, roomID, peerID string) error {
	if err := s.rdb.SAdd(ctx, peersKey(roomID), peerID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, peersKey(roomID), peerSetTTL).Err()
}

func (s *RedisStore) RemovePeer(ctx context.Context, roomID, peerID string) error {
	return s.rdb.SRem(ctx, peersKey(roomID), peerID).Err()
}

func (s *RedisStore) Count(ctx context.Context, roomID string) (int, error) {
	n, err := s.rdb.SCard(ctx, peersKey(roomID)).Result()
	return int(n), err
}

// MemoryStore implements Store with a process-local map, for tests and for
// running without Redis.
type MemoryStore struct {
	mu    sync.Mutex
	peers map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{peers: make(map[string]map[string]struct{})}
}

func (s *MemoryStore) AddPeer(_ context.Context, roomID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peers[roomID] == nil {
		s.peers[roomID] = make(map[string]struct{})
	}
	s.peers[roomID][peerID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemovePeer(_ context.Context, roomID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers[roomID], peerID)
	if len(s.peers[roomID]) == 0 {
		delete(s.peers, roomID)
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers[roomID]), nil
}
