package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"github.com/chatbridge/chatbridge/chat"
)

const redisKeyPrefix = "chatbridge:session:"

// redisSession is the wire form; only the turns travel, timestamps and the
// in-flight gate are reattached locally.
type redisSession struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Turns     *chat.Conversation `json:"turns"`
}

// RedisStore shares conversation buffers between replicas. The single
// in-flight gate stays per-process (cookie-based session affinity is assumed;
// a replica only ever serves requests for sessions routed to it).
type RedisStore struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	gates *gocache.Cache
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb:   rdb,
		ttl:   ttl,
		gates: gocache.New(ttl, 10*time.Minute),
	}
}

// NewRedisStoreFromURL parses a redis connection string and pings the server.
func NewRedisStoreFromURL(ctx context.Context, connString string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis connection string")
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return NewRedisStore(rdb, ttl), nil
}

// gate attaches the process-local in-flight semaphore for a session id.
// Add is atomic, so concurrent Gets for a session not yet gated agree on one
// winner and every handle shares that winner's semaphore.
func (r *RedisStore) gate(s *Session) {
	for {
		if err := r.gates.Add(s.ID, s, r.ttl); err == nil {
			return
		}
		if v, ok := r.gates.Get(s.ID); ok {
			s.inflight = v.(*Session).inflight
			return
		}
		// the cached gate expired between Add and Get, try again
	}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get session %s", id)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	s := New(rs.ID)
	s.CreatedAt = rs.CreatedAt
	if rs.Turns != nil {
		s.Conversation = rs.Turns
	}
	r.gate(s)
	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(redisSession{ID: s.ID, CreatedAt: s.CreatedAt, Turns: s.Conversation})
	if err != nil {
		return errors.Wrapf(err, "encode session %s", s.ID)
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set session %s", s.ID)
	}
	r.gate(s)
	return nil
}

func (r *RedisStore) Touch(ctx context.Context, id string) error {
	if err := r.rdb.Expire(ctx, redisKeyPrefix+id, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "touch session %s", id)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	r.gates.Delete(id)
	if err := r.rdb.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return errors.Wrapf(err, "delete session %s", id)
	}
	return nil
}
