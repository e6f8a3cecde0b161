package ledger

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

func entryAt(paymentID string, at time.Time) Entry {
	return Entry{PaymentID: paymentID, Event: events.KindConfirmed, Provider: "check-pix", ReceivedAt: at}
}

func TestAppend_AssignsLocalIDAndResetsState(t *testing.T) {
	l := New(0)
	ms := 12.0
	id := l.Append(Entry{ID: "provider-id", PaymentID: "S1", Processed: true, Outcome: events.OutcomeProcessed, ResponseTimeMs: &ms})

	assert.True(t, strings.HasPrefix(id, "wh_"))
	e, ok := l.Get(id)
	require.True(t, ok)
	assert.False(t, e.Processed)
	assert.False(t, e.Marked())
	assert.Nil(t, e.ResponseTimeMs)
	assert.False(t, e.ReceivedAt.IsZero())
	assert.Equal(t, DefaultCapacity, l.Capacity())
}

func TestAppend_EvictsOldestBeyondCapacity(t *testing.T) {
	l := New(DefaultCapacity)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var first string
	for i := 0; i < DefaultCapacity+1; i++ {
		id := l.Append(entryAt(fmt.Sprintf("P%d", i), base.Add(time.Duration(i)*time.Second)))
		if i == 0 {
			first = id
		}
	}

	h := l.History()
	require.Len(t, h, DefaultCapacity)
	assert.Equal(t, "P1", h[0].PaymentID)
	assert.Equal(t, fmt.Sprintf("P%d", DefaultCapacity), h[len(h)-1].PaymentID)
	_, ok := l.Get(first)
	assert.False(t, ok)
}

func TestAppend_EvictsByReceivedAtNotArrival(t *testing.T) {
	l := New(2)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Append(entryAt("B", base.Add(2*time.Second)))
	l.Append(entryAt("A", base.Add(1*time.Second)))
	l.Append(entryAt("C", base.Add(3*time.Second)))

	h := l.History()
	require.Len(t, h, 2)
	assert.Equal(t, "B", h[0].PaymentID)
	assert.Equal(t, "C", h[1].PaymentID)
}

func TestAppend_OlderThanFullWindowIsKept(t *testing.T) {
	l := New(2)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Append(entryAt("B", base.Add(2*time.Second)))
	l.Append(entryAt("C", base.Add(3*time.Second)))
	id := l.Append(entryAt("late", base))

	e, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Second), e.ReceivedAt)
	require.NoError(t, l.MarkProcessed(id, events.OutcomeProcessed, true, time.Millisecond))

	h := l.History()
	require.Len(t, h, 2)
	assert.Equal(t, "late", h[0].PaymentID)
	assert.Equal(t, "C", h[1].PaymentID)
}

func TestMarkProcessed_ByEntryID(t *testing.T) {
	l := New(0)
	first := l.Append(entryAt("P", time.Now()))
	second := l.Append(entryAt("P", time.Now()))

	require.NoError(t, l.MarkProcessed(second, events.OutcomeProcessed, true, 40*time.Millisecond))

	e1, _ := l.Get(first)
	e2, _ := l.Get(second)
	assert.False(t, e1.Marked(), "same paymentId must not be confused")
	assert.True(t, e2.Processed)
	require.NotNil(t, e2.ResponseTimeMs)
	assert.InDelta(t, 40.0, *e2.ResponseTimeMs, 0.001)
}

func TestMarkProcessed_Once(t *testing.T) {
	l := New(0)
	id := l.Append(entryAt("P", time.Now()))
	require.NoError(t, l.MarkProcessed(id, events.OutcomeInvalidSignature, false, time.Millisecond))
	assert.ErrorIs(t, l.MarkProcessed(id, events.OutcomeProcessed, true, time.Millisecond), ErrAlreadyMarked)

	e, _ := l.Get(id)
	assert.Equal(t, events.OutcomeInvalidSignature, e.Outcome)
	assert.False(t, e.Processed)
}

func TestMarkProcessed_Errors(t *testing.T) {
	l := New(0)
	assert.ErrorIs(t, l.MarkProcessed("wh_missing", events.OutcomeProcessed, true, 0), ErrEntryNotFound)

	id := l.Append(entryAt("P", time.Now()))
	assert.ErrorIs(t, l.MarkProcessed(id, events.OutcomeProcessed, true, -time.Second), ErrInvalidLatency)
}

func TestHistory_IsDefensiveCopy(t *testing.T) {
	l := New(0)
	id := l.Append(Entry{PaymentID: "P", Payload: []byte(`{"a":1}`)})
	require.NoError(t, l.MarkProcessed(id, events.OutcomeProcessed, true, 5*time.Millisecond))

	h := l.History()
	h[0].Processed = false
	h[0].Payload[0] = 'X'
	*h[0].ResponseTimeMs = 999

	e, _ := l.Get(id)
	assert.True(t, e.Processed)
	assert.Equal(t, `{"a":1}`, string(e.Payload))
	assert.InDelta(t, 5.0, *e.ResponseTimeMs, 0.001)
}

func TestStats_Invariant(t *testing.T) {
	l := New(10)
	for i := 0; i < 25; i++ {
		id := l.Append(entryAt(fmt.Sprintf("P%d", i), time.Now()))
		if i%3 == 0 {
			require.NoError(t, l.MarkProcessed(id, events.OutcomeProcessed, true, time.Millisecond))
		}
	}
	s := l.Stats()
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, s.Total, s.Processed+s.Failed)
}

func TestCompute_MeanIgnoresMissing(t *testing.T) {
	fifty, onefifty := 50.0, 150.0
	s := Compute([]Entry{
		{Processed: true, ResponseTimeMs: &fifty},
		{Processed: false},
		{Processed: true, ResponseTimeMs: &onefifty},
	})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 100.0, s.AverageResponseTimeMs, 0.0001)
}

func TestCompute_ZeroIsARecordedTime(t *testing.T) {
	zero, twenty := 0.0, 20.0
	s := Compute([]Entry{{ResponseTimeMs: &zero}, {ResponseTimeMs: &twenty}})
	assert.InDelta(t, 10.0, s.AverageResponseTimeMs, 0.0001)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, Compute(nil))
}

func TestLedger_ConcurrentAppendAndMark(t *testing.T) {
	l := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := l.Append(entryAt(fmt.Sprintf("P%d", i), time.Now()))
			_ = l.MarkProcessed(id, events.OutcomeProcessed, true, time.Millisecond)
			_ = l.Stats()
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.History(), 50)
}
