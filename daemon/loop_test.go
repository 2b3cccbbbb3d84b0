package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/engine"
)

func TestLoopSubmitRunsAgainstSameDatabase(t *testing.T) {
	db := engine.NewDatabase()
	loop := NewLoop(db)
	defer loop.Stop()

	ctx := context.Background()
	res, err := loop.Submit(ctx, func(d *engine.Database) (any, error) {
		return d.TableNames(), nil
	})
	require.NoError(t, err)
	assert.Empty(t, res.([]string))
}

func TestLoopSubmitPropagatesError(t *testing.T) {
	db := engine.NewDatabase()
	loop := NewLoop(db)
	defer loop.Stop()

	wantErr := errors.New("boom")
	_, err := loop.Submit(context.Background(), func(d *engine.Database) (any, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestLoopSubmitRespectsContextCancellation(t *testing.T) {
	db := engine.NewDatabase()
	loop := NewLoop(db)
	defer loop.Stop()

	// Occupy the loop's single goroutine so the jobs channel has no
	// ready receiver, forcing the canceled-context Submit below to
	// observe ctx.Done() rather than racing a send through.
	blocking := make(chan struct{})
	go loop.Submit(context.Background(), func(d *engine.Database) (any, error) {
		<-blocking
		return nil, nil
	})
	defer close(blocking)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Submit(ctx, func(d *engine.Database) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopSubmitAfterStopReturnsErrStopped(t *testing.T) {
	db := engine.NewDatabase()
	loop := NewLoop(db)
	loop.Stop()

	_, err := loop.Submit(context.Background(), func(d *engine.Database) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLoopSerializesConcurrentSubmits(t *testing.T) {
	db := engine.NewDatabase()
	loop := NewLoop(db)
	defer loop.Stop()

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := loop.Submit(context.Background(), func(d *engine.Database) (any, error) {
				time.Sleep(time.Millisecond)
				return nil, nil
			})
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
}
