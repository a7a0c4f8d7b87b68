package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *recordingBroadcaster) Broadcast(message []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, string(message))
}

func (b *recordingBroadcaster) ClientCount() int { return 1 }

func (b *recordingBroadcaster) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func TestBroadcastOnce(t *testing.T) {
	sd := simdata.New(logger.NewNop())
	b := &recordingBroadcaster{}
	s := NewService(sd, b, time.Hour, logger.NewNop())

	s.BroadcastOnce()

	sd.MergePartial(simdata.GroupGPS, simdata.Partial{
		simdata.FieldLatitude:  simdata.Float(45),
		simdata.FieldLongitude: simdata.Float(-122),
	})
	s.BroadcastOnce()

	msgs := b.snapshot()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{}`, msgs[0])
	assert.JSONEq(t, `{"position":{"latitudeDeg":45,"longitudeDeg":-122}}`, msgs[1])
	assert.Equal(t, uint64(2), s.Broadcasts())
}

func TestServiceBroadcastsPeriodically(t *testing.T) {
	b := &recordingBroadcaster{}
	s := NewService(simdata.New(logger.NewNop()), b, 10*time.Millisecond, logger.NewNop())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Broadcasts() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	n := s.Broadcasts()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, s.Broadcasts(), "no broadcasts after Stop")
}

func TestServiceStopsWithContext(t *testing.T) {
	s := NewService(simdata.New(logger.NewNop()), &recordingBroadcaster{}, 0, logger.NewNop())
	assert.Equal(t, DefaultSendInterval, s.interval)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast loop did not exit")
	}
}
