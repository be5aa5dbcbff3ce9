package usecase_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/tests/testutil"
)

func TestConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	tb := testutil.NewTestBank(t)
	acc := tb.CreateTestAccount(ctx, "alice")

	const n = 500

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			_, err := tb.Bank.Deposit(ctx, acc.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), tb.MustBalance(ctx, acc.ID))
	assert.Equal(t, int64(n), tb.MustGet(ctx, acc.ID).Version)
	tb.AssertConsistent(ctx)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	tb := testutil.NewTestBank(t)
	acc := tb.CreateTestAccountWithBalance(ctx, "alice", 100)

	const n = 300

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			_, err := tb.Bank.Withdraw(ctx, acc.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, succeeded)
	assert.Equal(t, int64(0), tb.MustBalance(ctx, acc.ID))
	tb.AssertConsistent(ctx)
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	ctx := context.Background()
	tb := testutil.NewTestBank(t)
	a := tb.CreateTestAccountWithBalance(ctx, "alice", 1000)
	b := tb.CreateTestAccountWithBalance(ctx, "bob", 1000)

	const rounds = 400

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for range rounds {
			if _, err := tb.Bank.Transfer(gctx, a.ID, b.ID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for range rounds {
			if _, err := tb.Bank.Transfer(gctx, b.ID, a.ID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1000), tb.MustBalance(ctx, a.ID))
	assert.Equal(t, int64(1000), tb.MustBalance(ctx, b.ID))
	tb.AssertConsistent(ctx)
}

func TestConcurrentRandomWorkload(t *testing.T) {
	ctx := context.Background()
	tb := testutil.NewTestBank(t)

	const (
		accounts = 8
		workers  = 8
		ops      = 300
		initial  = 500
	)

	ids := make([]string, accounts)
	for i := range ids {
		ids[i] = tb.CreateTestAccountWithBalance(ctx, "owner", initial).ID
	}

	var g errgroup.Group
	for w := range workers {
		rng := rand.New(rand.NewSource(int64(w + 1)))
		g.Go(func() error {
			for range ops {
				from := ids[rng.Intn(accounts)]
				to := ids[rng.Intn(accounts)]
				amount := int64(rng.Intn(50) + 1)

				switch rng.Intn(4) {
				case 0:
					_, _ = tb.Bank.Deposit(ctx, from, amount)
				case 1:
					_, _ = tb.Bank.Withdraw(ctx, from, amount)
				default:
					_, _ = tb.Bank.Transfer(ctx, from, to, amount)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	report := tb.AssertConsistent(ctx)
	assert.True(t, report.Consistent)
	assert.Equal(t, accounts, report.Accounts)

	for _, id := range ids {
		assert.GreaterOrEqual(t, tb.MustBalance(ctx, id), int64(0))
	}
}
