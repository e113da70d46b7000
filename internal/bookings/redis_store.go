package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultRedisPrefix = "consult:"

// RedisStore keeps each booking as a JSON string, an index sorted by creation time and
// a slot:<ts> claim key naming the completed booking that holds the slot. Writes run
// under WATCH/MULTI/EXEC and retry when a watched key changes.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	tracer trace.Tracer
}

// NewRedisStore creates a store. An empty prefix uses "consult:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("bookings: redis client required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		tracer: otel.Tracer("consult.internal.bookings.redis"),
	}
}

func (s *RedisStore) bookingKey(id string) string {
	return s.prefix + "booking:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "bookings"
}

func (s *RedisStore) slotKey(ts int64) string {
	return s.prefix + "slot:" + strconv.FormatInt(ts, 10)
}

func (s *RedisStore) List(ctx context.Context) ([]*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.redis.list")
	defer span.End()

	ids, err := s.redis.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: list index: %w", err)
	}
	out := make([]*Booking, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.bookingKey(id)
	}
	raw, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: load bookings: %w", err)
	}
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var b Booking
		if err := json.Unmarshal([]byte(str), &b); err != nil {
			return nil, fmt.Errorf("bookings: decode booking: %w", err)
		}
		out = append(out, &b)
	}
	return out, nil
}

func (s *RedisStore) SlotTaken(ctx context.Context, timestamp int64) (bool, error) {
	n, err := s.redis.Exists(ctx, s.slotKey(timestamp)).Result()
	if err != nil {
		return false, fmt.Errorf("bookings: slot taken: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Insert(ctx context.Context, b *Booking) error {
	ctx, span := s.tracer.Start(ctx, "bookings.redis.insert")
	defer span.End()

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("bookings: encode booking: %w", err)
	}
	slotKey := s.slotKey(b.Timestamp)

	err = s.withRetry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, slotKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSlotConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.bookingKey(b.ID), data, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(b.CreatedAt.UnixMilli()), Member: b.ID})
			if b.HoldsSlot() {
				pipe.Set(ctx, slotKey, b.ID, 0)
			}
			return nil
		})
		return err
	}, slotKey)
	if err != nil && !errors.Is(err, ErrSlotConflict) {
		span.RecordError(err)
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Booking, error) {
	return s.load(ctx, s.redis, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.redis.update")
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bookingKey := s.bookingKey(id)
	slotKey := s.slotKey(current.Timestamp)

	var updated *Booking
	err = s.withRetry(ctx, func(tx *redis.Tx) error {
		b, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		wasHolding := b.HoldsSlot()
		if err := fn(b); err != nil {
			return err
		}
		holder, err := tx.Get(ctx, slotKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if b.HoldsSlot() && holder != "" && holder != id {
			return ErrSlotConflict
		}
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bookingKey, data, 0)
			switch {
			case b.HoldsSlot():
				pipe.Set(ctx, slotKey, id, 0)
			case wasHolding && holder == id:
				pipe.Del(ctx, slotKey)
			}
			return nil
		})
		if err == nil {
			updated = b
		}
		return err
	}, bookingKey, slotKey)
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: update: %w", err)
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "bookings.redis.delete")
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	bookingKey := s.bookingKey(id)
	slotKey := s.slotKey(current.Timestamp)

	err = s.withRetry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, bookingKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrBookingNotFound
		}
		holder, err := tx.Get(ctx, slotKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, bookingKey)
			pipe.ZRem(ctx, s.indexKey(), id)
			if holder == id {
				pipe.Del(ctx, slotKey)
			}
			return nil
		})
		return err
	}, bookingKey, slotKey)
	if err != nil {
		if isDomainError(err) {
			return err
		}
		span.RecordError(err)
		return fmt.Errorf("bookings: delete: %w", err)
	}
	return nil
}

// withRetry runs fn under WATCH on keys, retrying when EXEC aborts.
func (s *RedisStore) withRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errConcurrentUpdate
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c redisGetter, id string) (*Booking, error) {
	raw, err := c.Get(ctx, s.bookingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	var b Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("bookings: decode booking: %w", err)
	}
	return &b, nil
}

// isDomainError reports errors callers branch on, which must not be rewrapped.
func isDomainError(err error) bool {
	return errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidBooking)
}
