// Package sessioncache keeps short-lived records of connected chat
// sessions in Redis. Writes are best-effort: the messaging core never
// depends on them.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// ErrNotFound is returned when no record exists for a client id.
var ErrNotFound = errors.New("sessioncache: session not found")

// Session is the record stored per connected client.
type Session struct {
	ClientId    string    `json:"client_id"`
	RoomName    string    `json:"room_name"`
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connected_at"`
}

type Store struct {
	client *redis.Client
	log    *log.Logger
	ttl    time.Duration
}

func NewStore(addr, password string, db int, ttl time.Duration, logger *log.Logger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second,
	})

	return &Store{
		client: client,
		log:    logger,
		ttl:    ttl,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Set(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, sessionKey(sess.ClientId), data, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, clientId string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(clientId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, clientId string) error {
	return s.client.Del(ctx, sessionKey(clientId)).Err()
}

// Extend resets the record's expiration to the store's TTL.
func (s *Store) Extend(ctx context.Context, clientId string) error {
	ok, err := s.client.Expire(ctx, sessionKey(clientId), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(clientId string) string {
	return keyPrefix + clientId
}
