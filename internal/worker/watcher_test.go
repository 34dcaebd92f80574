package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestWatcher_FiresOnOnlineEdgeOnly(t *testing.T) {
	ctx := context.Background()
	pinger := &fakePinger{err: errors.New("unreachable")}

	var fired int
	w := NewWatcher(pinger, time.Minute, func(ctx context.Context) { fired++ }, testLog())

	w.probe(ctx)
	assert.Zero(t, fired, "starting offline must not fire")
	assert.Equal(t, ModeOffline, w.mode)

	pinger.set(nil)
	w.probe(ctx)
	assert.Equal(t, 1, fired)
	assert.Equal(t, ModeOnline, w.mode)

	w.probe(ctx)
	assert.Equal(t, 1, fired, "staying online must not fire again")

	pinger.set(errors.New("unreachable"))
	w.probe(ctx)
	pinger.set(nil)
	w.probe(ctx)
	assert.Equal(t, 2, fired, "every offline-to-online edge fires")
}

func TestWatcher_FirstProbeOnlineFires(t *testing.T) {
	var fired int
	w := NewWatcher(&fakePinger{}, time.Minute, func(ctx context.Context) { fired++ }, testLog())

	w.probe(context.Background())
	assert.Equal(t, 1, fired)
}

func TestWatcher_Online(t *testing.T) {
	pinger := &fakePinger{}
	w := NewWatcher(pinger, time.Minute, nil, testLog())

	assert.True(t, w.Online(context.Background()))
	pinger.set(errors.New("down"))
	assert.False(t, w.Online(context.Background()))
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(&fakePinger{}, 5*time.Millisecond, nil, testLog())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}
