package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"eco_api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTx(ref string, created time.Time) *domain.Transaction {
	return &domain.Transaction{
		Reference:        ref,
		Email:            "a@x.com",
		AmountMinor:      500000,
		Currency:         "NGN",
		Metadata:         map[string]any{"plan": "premium", "pets": json.Number("2")},
		Status:           domain.StatusInitialized,
		CallbackURL:      "https://eco.test/api/payments/verify",
		AuthorizationURL: "https://pay/x",
		CreatedAt:        created,
	}
}

// runStoreContract exercises the behaviour every TransactionStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) TransactionStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))

		got, err := s.Get(ctx, "REF1")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", got.Email)
		assert.Equal(t, int64(500000), got.AmountMinor)
		assert.Equal(t, domain.StatusInitialized, got.Status)
		assert.Equal(t, "https://pay/x", got.AuthorizationURL)
		assert.Equal(t, json.Number("2"), got.Metadata["pets"])
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("duplicate reference", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))
		assert.ErrorIs(t, s.Create(ctx, makeTx("REF1", base)), ErrDuplicateReference)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		s := newStore(t)
		tx := makeTx("REF0", base)
		tx.AmountMinor = 0
		assert.Error(t, s.Create(ctx, tx))
	})

	t.Run("get unknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "UNKNOWN")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Transition(ctx, "UNKNOWN", domain.StatusVerified, TransitionOptions{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("forward transition then terminal absorbs", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))

		paid := base.Add(time.Minute)
		res, err := s.Transition(ctx, "REF1", domain.StatusVerified, TransitionOptions{PaidAt: &paid, GatewayStatus: "success"})
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, domain.StatusInitialized, res.From)
		assert.Equal(t, domain.StatusVerified, res.Tx.Status)
		require.NotNil(t, res.Tx.PaidAt)
		assert.True(t, paid.Equal(*res.Tx.PaidAt))

		res, err = s.Transition(ctx, "REF1", domain.StatusVerified, TransitionOptions{})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, domain.StatusVerified, res.From)
		assert.Equal(t, domain.StatusVerified, res.Tx.Status)

		res, err = s.Transition(ctx, "REF1", domain.StatusFailed, TransitionOptions{GatewayStatus: "failed"})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, domain.StatusVerified, res.Tx.Status)

		stored, err := s.Get(ctx, "REF1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, stored.Status)
		assert.Equal(t, "success", stored.GatewayStatus)
	})

	t.Run("backward transition is invalid", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))

		_, err := s.Transition(ctx, "REF1", domain.StatusPending, TransitionOptions{})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.Transition(ctx, "REF1", domain.StatusInitialized, TransitionOptions{})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.Transition(ctx, "REF1", domain.TxStatus("REFUNDED"), TransitionOptions{})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("abandoned can still be settled", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))

		res, err := s.Transition(ctx, "REF1", domain.StatusAbandoned, TransitionOptions{})
		require.NoError(t, err)
		assert.True(t, res.Changed)

		res, err = s.Transition(ctx, "REF1", domain.StatusAbandoned, TransitionOptions{})
		require.NoError(t, err)
		assert.False(t, res.Changed)

		_, err = s.Transition(ctx, "REF1", domain.StatusInitialized, TransitionOptions{})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		res, err = s.Transition(ctx, "REF1", domain.StatusVerified, TransitionOptions{GatewayStatus: "charge.success"})
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, domain.StatusAbandoned, res.From)
		assert.Equal(t, domain.StatusVerified, res.Tx.Status)

		res, err = s.Transition(ctx, "REF1", domain.StatusAbandoned, TransitionOptions{})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, domain.StatusVerified, res.Tx.Status)
	})

	t.Run("concurrent confirmations apply exactly once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, makeTx("REF1", base)))

		const workers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
			errs    []error
		)
		for i := 0; i < workers; i++ {
			to := domain.StatusVerified
			if i%2 == 1 {
				to = domain.StatusFailed
			}
			wg.Add(1)
			go func(to domain.TxStatus) {
				defer wg.Done()
				res, err := s.Transition(ctx, "REF1", to, TransitionOptions{})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				if res.Changed {
					applied++
				}
			}(to)
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, 1, applied)
		got, err := s.Get(ctx, "REF1")
		require.NoError(t, err)
		assert.True(t, got.Status.IsTerminal())
	})

	t.Run("list filters and pages", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			tx := makeTx(fmt.Sprintf("REF%d", i), base.Add(time.Duration(i)*time.Hour))
			if i == 4 {
				tx.Email = "b@x.com"
			}
			require.NoError(t, s.Create(ctx, tx))
		}
		_, err := s.Transition(ctx, "REF0", domain.StatusVerified, TransitionOptions{})
		require.NoError(t, err)

		all, err := s.List(ctx, TxFilter{}, 10, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "REF4", all[0].Reference)

		page, err := s.List(ctx, TxFilter{}, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "REF3", page[0].Reference)
		assert.Equal(t, "REF2", page[1].Reference)

		initialized, err := s.List(ctx, TxFilter{Status: domain.StatusInitialized}, 10, 0)
		require.NoError(t, err)
		assert.Len(t, initialized, 4)

		byEmail, err := s.List(ctx, TxFilter{Email: "B@X.COM"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, byEmail, 1)
		assert.Equal(t, "REF4", byEmail[0].Reference)

		stale, err := s.List(ctx, TxFilter{Status: domain.StatusInitialized, CreatedBefore: base.Add(2 * time.Hour)}, 10, 0)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "REF1", stale[0].Reference)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
