package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"brillprime/internal/shared/config"
	"brillprime/internal/tracking/domain"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLiveTTL = 48 * time.Hour

	historyCap    = 1000
	liveKeyPrefix = "live:"
	historyPrefix = "history:"
	channelPrefix = "locations:user:"
	pingTimeout   = 2 * time.Second
)

// LiveLocationStore implements out.LiveLocationStore on Redis. The latest
// position is a JSON value with TTL, history is a capped newest-first list, and
// every upsert is also published on the user's channel.
type LiveLocationStore struct {
	rdb     *redis.Client
	liveTTL time.Duration
}

func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func NewLiveLocationStore(rdb *redis.Client, liveTTL time.Duration) *LiveLocationStore {
	if liveTTL <= 0 {
		liveTTL = DefaultLiveTTL
	}
	return &LiveLocationStore{rdb: rdb, liveTTL: liveTTL}
}

func liveKey(userID string) string    { return liveKeyPrefix + userID }
func historyKey(userID string) string { return historyPrefix + userID }
func Channel(userID string) string    { return channelPrefix + userID }

func (s *LiveLocationStore) Upsert(ctx context.Context, userID string, pos domain.Position) error {
	pos.IsStale = false
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, liveKey(userID), data, s.liveTTL)
		p.Publish(ctx, Channel(userID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert %s: %w", userID, err)
	}
	return nil
}

// AppendHistory pushes newest-first and trims the list to historyCap entries.
func (s *LiveLocationStore) AppendHistory(ctx context.Context, userID string, batch []domain.Position) error {
	if len(batch) == 0 {
		return nil
	}
	values := make([]any, 0, len(batch))
	for _, pos := range batch {
		data, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		values = append(values, data)
	}

	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, historyKey(userID), values...)
		p.LTrim(ctx, historyKey(userID), 0, historyCap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis history %s: %w", userID, err)
	}
	return nil
}

func (s *LiveLocationStore) Get(ctx context.Context, userID string) (domain.Position, error) {
	data, err := s.rdb.Get(ctx, liveKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Position{}, domain.ErrLocationNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("redis get %s: %w", userID, err)
	}
	return decodePosition(data)
}

func (s *LiveLocationStore) History(ctx context.Context, userID string, limit int) ([]domain.Position, error) {
	raw, err := s.rdb.LRange(ctx, historyKey(userID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history %s: %w", userID, err)
	}

	items := make([]domain.Position, 0, len(raw))
	for _, r := range raw {
		pos, err := decodePosition([]byte(r))
		if err != nil {
			return nil, err
		}
		items = append(items, pos)
	}
	return items, nil
}

// SubscribeAll pattern-subscribes to every user channel and hands each
// decodable position to fn until ctx ends. Undecodable payloads are skipped.
func (s *LiveLocationStore) SubscribeAll(ctx context.Context, fn func(domain.LiveLocation)) error {
	sub := s.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe %s*: %w", channelPrefix, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			loc, err := decodeMessage(msg)
			if err != nil {
				continue
			}
			fn(loc)
		}
	}
}

func decodeMessage(msg *redis.Message) (domain.LiveLocation, error) {
	userID, ok := strings.CutPrefix(msg.Channel, channelPrefix)
	if !ok || userID == "" {
		return domain.LiveLocation{}, fmt.Errorf("unexpected channel %q", msg.Channel)
	}
	pos, err := decodePosition([]byte(msg.Payload))
	if err != nil {
		return domain.LiveLocation{}, err
	}
	return domain.LiveLocation{UserID: userID, Position: pos}, nil
}

func decodePosition(data []byte) (domain.Position, error) {
	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("decode position: %w", err)
	}
	if err := pos.Validate(); err != nil {
		return domain.Position{}, err
	}
	return pos, nil
}
