package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_SubmittedEqualsProcessed(t *testing.T) {
	t.Parallel()

	d := New(nil)

	var processed atomic.Int32

	d.Subscribe(KindAlbumAdd, func(_ context.Context, _ any, _ bool) error {
		processed.Add(1)
		return nil
	})

	for range 25 {
		d.FireEvent(context.Background(), KindAlbumAdd, nil, false)
	}

	require.NoError(t, d.Join(context.Background()))

	summary := d.Summary()
	assert.Equal(t, 25, summary.TotalSubmitted)
	assert.Equal(t, 25, summary.TotalProcessed)
	assert.Equal(t, int32(25), processed.Load())
}

func TestJoin_DrainsTransitivelyFiredEvents(t *testing.T) {
	t.Parallel()

	d := New(nil)

	var albumAdds atomic.Int32

	d.Subscribe(KindFolderAdd, func(ctx context.Context, _ any, dryRun bool) error {
		// Simulate a FOLDER_ADD handler fanning out ALBUM_ADD events for
		// every album it discovers under the new folder.
		d.FireEvent(ctx, KindAlbumAdd, nil, dryRun)
		d.FireEvent(ctx, KindAlbumAdd, nil, dryRun)

		return nil
	})

	d.Subscribe(KindAlbumAdd, func(_ context.Context, _ any, _ bool) error {
		albumAdds.Add(1)
		return nil
	})

	d.FireEvent(context.Background(), KindFolderAdd, nil, false)

	require.NoError(t, d.Join(context.Background()))

	assert.Equal(t, int32(2), albumAdds.Load())

	summary := d.Summary()
	assert.Equal(t, 3, summary.TotalSubmitted)
	assert.Equal(t, 3, summary.TotalProcessed)
}

func TestHandlers_RunSequentiallyInRegistrationOrder(t *testing.T) {
	t.Parallel()

	d := New(nil)

	var order []int

	d.Subscribe(KindAlbumSync, func(_ context.Context, _ any, _ bool) error {
		order = append(order, 1)
		return nil
	})
	d.Subscribe(KindAlbumSync, func(_ context.Context, _ any, _ bool) error {
		order = append(order, 2)
		return nil
	})
	d.Subscribe(KindAlbumSync, func(_ context.Context, _ any, _ bool) error {
		order = append(order, 3)
		return nil
	})

	d.FireEvent(context.Background(), KindAlbumSync, nil, false)
	require.NoError(t, d.Join(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestHandleEvent_RespectsConcurrencyCap(t *testing.T) {
	t.Parallel()

	d := New(nil)

	var inFlight, maxInFlight atomic.Int32

	d.Subscribe(KindAlbumSync, func(_ context.Context, _ any, _ bool) error {
		n := inFlight.Add(1)

		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)

		return nil
	})

	for range 40 {
		d.FireEvent(context.Background(), KindAlbumSync, nil, false)
	}

	require.NoError(t, d.Join(context.Background()))

	assert.LessOrEqual(t, maxInFlight.Load(), int32(concurrencyLimit))
}

func TestJoin_AggregatesHandlerErrors(t *testing.T) {
	t.Parallel()

	d := New(nil)

	errBoom := errors.New("boom")

	d.Subscribe(KindAlbumDelete, func(_ context.Context, payload any, _ bool) error {
		if payload == "fail" {
			return errBoom
		}

		return nil
	})

	d.FireEvent(context.Background(), KindAlbumDelete, "ok", false)
	d.FireEvent(context.Background(), KindAlbumDelete, "fail", false)
	d.FireEvent(context.Background(), KindAlbumDelete, "ok", false)

	err := d.Join(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	summary := d.Summary()
	assert.Equal(t, 3, summary.TotalSubmitted)
	assert.Equal(t, 3, summary.TotalProcessed)
}

func TestSubscribe_IsIdempotentPerFunctionValue(t *testing.T) {
	t.Parallel()

	d := New(nil)

	var calls atomic.Int32

	h := func(_ context.Context, _ any, _ bool) error {
		calls.Add(1)
		return nil
	}

	d.Subscribe(KindAlbumAdd, h)
	d.Subscribe(KindAlbumAdd, h)
	d.Subscribe(KindAlbumAdd, h)

	d.FireEvent(context.Background(), KindAlbumAdd, nil, false)
	require.NoError(t, d.Join(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
}

func TestSummary_CountsPerKind(t *testing.T) {
	t.Parallel()

	d := New(nil)

	d.Subscribe(KindFolderAdd, func(_ context.Context, _ any, _ bool) error { return nil })
	d.Subscribe(KindAlbumAdd, func(_ context.Context, _ any, _ bool) error { return nil })

	d.FireEvent(context.Background(), KindFolderAdd, nil, false)
	d.FireEvent(context.Background(), KindAlbumAdd, nil, false)
	d.FireEvent(context.Background(), KindAlbumAdd, nil, false)

	require.NoError(t, d.Join(context.Background()))

	summary := d.Summary()
	assert.Equal(t, 1, summary.SubmittedByKind[KindFolderAdd])
	assert.Equal(t, 2, summary.SubmittedByKind[KindAlbumAdd])
}
