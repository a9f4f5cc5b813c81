package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"eco_api/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	redisTxPrefix = "eco:payment:tx:"
	redisTxIndex  = "eco:payment:index"
	redisScanSize = 100
)

// RedisRepo keeps one JSON document per reference plus a sorted-set index
// scored by creation time (unix millis).
type RedisRepo struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client, now: time.Now}
}

type redisTx struct {
	Reference        string          `json:"reference"`
	Email            string          `json:"email"`
	AmountMinor      int64           `json:"amount_minor"`
	Currency         string          `json:"currency"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	Status           string          `json:"status"`
	GatewayStatus    string          `json:"gateway_status,omitempty"`
	CallbackURL      string          `json:"callback_url"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

func encodeRedisTx(t *domain.Transaction) ([]byte, error) {
	rec := redisTx{
		Reference:        t.Reference,
		Email:            t.Email,
		AmountMinor:      t.AmountMinor,
		Currency:         t.Currency,
		Status:           string(t.Status),
		GatewayStatus:    t.GatewayStatus,
		CallbackURL:      t.CallbackURL,
		AuthorizationURL: t.AuthorizationURL,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		PaidAt:           t.PaidAt,
	}
	if t.Metadata != nil {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		rec.Metadata = b
	}
	return json.Marshal(rec)
}

func decodeRedisTx(raw []byte) (*domain.Transaction, error) {
	var rec redisTx
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	meta, err := decodeMetadata(rec.Metadata)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		Reference:        rec.Reference,
		Email:            rec.Email,
		AmountMinor:      rec.AmountMinor,
		Currency:         rec.Currency,
		Metadata:         meta,
		Status:           domain.TxStatus(rec.Status),
		GatewayStatus:    rec.GatewayStatus,
		CallbackURL:      rec.CallbackURL,
		AuthorizationURL: rec.AuthorizationURL,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		PaidAt:           rec.PaidAt,
	}, nil
}

func txKey(ref string) string { return redisTxPrefix + ref }

func (r *RedisRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if err := validateNew(t); err != nil {
		return err
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	t.UpdatedAt = t.CreatedAt

	payload, err := encodeRedisTx(t)
	if err != nil {
		return err
	}

	key := txKey(t.Reference)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateReference
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, redisTxIndex, &redis.Z{
				Score:  float64(t.CreatedAt.UnixMilli()),
				Member: t.Reference,
			})
			return nil
		})
		return err
	}, key)

	// a racing creator touched the key between WATCH and EXEC
	if errors.Is(err, redis.TxFailedErr) {
		return ErrDuplicateReference
	}
	return err
}

func (r *RedisRepo) Get(ctx context.Context, ref string) (*domain.Transaction, error) {
	raw, err := r.client.Get(ctx, txKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRedisTx(raw)
}

func (r *RedisRepo) Transition(ctx context.Context, ref string, to domain.TxStatus, opts TransitionOptions) (TransitionResult, error) {
	key := txKey(ref)

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var result TransitionResult

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}

			t, err := decodeRedisTx(raw)
			if err != nil {
				return err
			}

			result.Tx = t
			result.From = t.Status
			ok, err := applyTransition(t, to, opts, r.now().UTC())
			if err != nil || !ok {
				return err
			}

			payload, err := encodeRedisTx(t)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err == nil {
				result.Changed = true
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return TransitionResult{Tx: result.Tx, From: result.From}, err
			}
			return TransitionResult{}, err
		}
		return result, nil
	}

	return TransitionResult{}, fmt.Errorf("transition %s: %w", ref, errConcurrentUpdate)
}

func (r *RedisRepo) List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	maxScore := "+inf"
	if !f.CreatedBefore.IsZero() {
		// exclusive upper bound
		maxScore = "(" + strconv.FormatInt(f.CreatedBefore.UnixMilli(), 10)
	}

	var (
		res     []domain.Transaction
		skipped int
		cursor  int64
	)
	for len(res) < limit {
		refs, err := r.client.ZRevRangeByScore(ctx, redisTxIndex, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    maxScore,
			Offset: cursor,
			Count:  redisScanSize,
		}).Result()
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			break
		}
		cursor += int64(len(refs))

		keys := make([]string, len(refs))
		for i, ref := range refs {
			keys[i] = txKey(ref)
		}
		vals, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}

		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			t, err := decodeRedisTx([]byte(s))
			if err != nil {
				return nil, err
			}
			if !f.match(t) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			res = append(res, *t)
			if len(res) == limit {
				break
			}
		}

		if len(refs) < redisScanSize {
			break
		}
	}

	return res, nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}
