package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/storetest"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (s *failingSink) Log(context.Context, Event) error {
	s.calls++
	return errors.New("audit store unavailable")
}

func TestRecord_SwallowsFailure(t *testing.T) {
	m := metrics.New()
	sink := &failingSink{}

	assert.NotPanics(t, func() {
		Record(context.Background(), sink, m, TaskEvent(EventTaskDeleted, uuid.New(), uuid.New(), uuid.New(), nil))
	})
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailuresTotal.WithLabelValues(EventTaskDeleted)))

	// nil sink and nil metrics are both tolerated
	Record(context.Background(), nil, nil, Event{Action: EventTaskCreated})
	Record(context.Background(), sink, nil, Event{Action: EventTaskCreated})
	assert.Equal(t, 2, sink.calls)
}

func TestWriterAndReader(t *testing.T) {
	ctx := context.Background()
	f := storetest.NewFixture(t)
	org := f.Org("Acme")
	actor := f.User("admin@example.com")

	w := NewWriter(f.Store)
	taskID := uuid.New()
	require.NoError(t, w.Log(ctx, TaskEvent(EventTaskCreated, actor.ID, org.ID, taskID, map[string]any{"title": "Fix leak"})))
	require.Error(t, w.Log(ctx, Event{}))

	items, err := NewReader(f.Store).ListByOrg(ctx, org.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, EventTaskCreated, items[0].Action)
	assert.Equal(t, EntityTask, items[0].EntityType)
	assert.Equal(t, taskID.String(), items[0].EntityID)
	assert.Equal(t, "admin@example.com", items[0].ActorEmail)
	assert.Equal(t, "Fix leak", items[0].Meta["title"])
}

type recordingLister struct{ limit uint64 }

func (l *recordingLister) ListAuditByOrg(_ context.Context, _ uuid.UUID, limit uint64) ([]types.AuditEntry, error) {
	l.limit = limit
	return nil, nil
}

func TestReader_ClampsLimit(t *testing.T) {
	tests := []struct {
		in   int
		want uint64
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, DefaultListLimit},
	}

	for _, tt := range tests {
		l := &recordingLister{}
		items, err := NewReader(l).ListByOrg(context.Background(), uuid.New(), tt.in)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Equal(t, tt.want, l.limit, "limit %d", tt.in)
	}
}
