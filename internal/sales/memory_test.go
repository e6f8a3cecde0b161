package sales

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_MarkPaidCompareAndSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.CreatePending(ctx, &Sale{ID: "S1", Provider: "check-pix", TotalValue: decimal.RequireFromString("6.89")})
	require.NoError(t, err)

	res, err := m.MarkPaid(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, MarkedPaid, res)

	res, err = m.MarkPaid(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, AlreadyPaid, res)

	res, err = m.MarkPaid(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, NotFound, res)

	st, err := m.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, st)
	assert.Equal(t, 1, m.Transitions(id))
}

func TestMemory_ConcurrentMarkPaid(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, _ := m.CreatePending(ctx, &Sale{Provider: "inter"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.MarkPaid(ctx, id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Transitions(id))
}

func TestMemory_FindPendingByProvider(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	_, _ = m.CreatePending(ctx, &Sale{ID: "b", Provider: "inter", Date: now})
	_, _ = m.CreatePending(ctx, &Sale{ID: "a", Provider: "inter", Date: now.Add(-time.Minute)})
	_, _ = m.CreatePending(ctx, &Sale{ID: "c", Provider: "4send", Date: now})
	_, _ = m.MarkPaid(ctx, "b")

	got, err := m.FindPendingByProvider(ctx, "inter")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMemory_MarkPaidHonoursCancellation(t *testing.T) {
	m := NewMemory()
	id, _ := m.CreatePending(context.Background(), &Sale{Provider: "inter"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.MarkPaid(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
	st, _ := m.GetStatus(context.Background(), id)
	assert.Equal(t, StatusPending, st)
}
