package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
)

const maxTxRetries = 5

// RedisStore keeps each item as JSON under its own key, the open queue as a
// sorted set scored by enqueue time, and a hash from dedupe key to the open
// item id. Multi-key updates run in MULTI blocks guarded by WATCH.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "crowdfund:review"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) itemKey(reviewID id.ReviewID) string {
	return s.prefix + ":item:" + reviewID.String()
}
func (s *RedisStore) openKey() string   { return s.prefix + ":open" }
func (s *RedisStore) dedupeKey() string { return s.prefix + ":dedupe" }

func (s *RedisStore) Add(ctx context.Context, item *models.Item) (*models.Item, bool, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, false, fmt.Errorf("encode review item: %w", err)
	}

	var (
		existing *models.Item
		created  bool
	)
	txf := func(tx *redis.Tx) error {
		existing, created = nil, false
		openID, err := tx.HGet(ctx, s.dedupeKey(), item.DedupeKey()).Result()
		switch {
		case err == nil:
			reviewID, perr := id.ParseReviewID(openID)
			if perr != nil {
				return fmt.Errorf("corrupt dedupe entry %q: %w", openID, perr)
			}
			existing, err = s.load(ctx, tx, reviewID)
			return err
		case !errors.Is(err, redis.Nil):
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetNX(ctx, s.itemKey(item.ID), payload, 0)
			pipe.ZAdd(ctx, s.openKey(), redis.Z{Score: score(item), Member: item.ID.String()})
			pipe.HSet(ctx, s.dedupeKey(), item.DedupeKey(), item.ID.String())
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}
	if err := s.watch(ctx, txf, s.dedupeKey()); err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return item.Clone(), created, nil
}

func (s *RedisStore) Get(ctx context.Context, reviewID id.ReviewID) (*models.Item, error) {
	return s.load(ctx, s.client, reviewID)
}

func (s *RedisStore) ListOpen(ctx context.Context, limit int) ([]*models.Item, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRange(ctx, s.openKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list open reviews: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Item{}, nil
	}
	keys := make([]string, len(ids))
	for i, raw := range ids {
		keys[i] = s.prefix + ":item:" + raw
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load open reviews: %w", err)
	}
	out := make([]*models.Item, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Item key expired or was removed out of band.
			continue
		}
		var item models.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("decode review item: %w", err)
		}
		out = append(out, &item)
	}
	return out, nil
}

func (s *RedisStore) Execute(ctx context.Context, reviewID id.ReviewID, validate func(*models.Item) error, mutate func(*models.Item)) (*models.Item, error) {
	var result *models.Item
	txf := func(tx *redis.Tx) error {
		working, err := s.load(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if err := validate(working); err != nil {
			return err
		}
		mutate(working)
		payload, err := json.Marshal(working)
		if err != nil {
			return fmt.Errorf("encode review item: %w", err)
		}
		owner, err := tx.HGet(ctx, s.dedupeKey(), working.DedupeKey()).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if working.Status == models.StatusOpen && owner != "" && owner != reviewID.String() {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.itemKey(reviewID), payload, 0)
			switch working.Status {
			case models.StatusOpen:
				pipe.ZAdd(ctx, s.openKey(), redis.Z{Score: score(working), Member: reviewID.String()})
				pipe.HSet(ctx, s.dedupeKey(), working.DedupeKey(), reviewID.String())
			case models.StatusResolved:
				pipe.ZRem(ctx, s.openKey(), reviewID.String())
				if owner == reviewID.String() {
					pipe.HDel(ctx, s.dedupeKey(), working.DedupeKey())
				}
			}
			return nil
		})
		if err == nil {
			result = working
		}
		return err
	}
	if err := s.watch(ctx, txf, s.itemKey(reviewID), s.dedupeKey()); err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// watch retries fn while a watched key changes underneath it.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("review store contention: %w", sentinel.ErrUnavailable)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, reviewID id.ReviewID) (*models.Item, error) {
	raw, err := c.Get(ctx, s.itemKey(reviewID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load review item: %w", err)
	}
	var item models.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode review item: %w", err)
	}
	return &item, nil
}

func score(item *models.Item) float64 {
	return float64(item.EnqueuedAt.UnixMilli())
}
