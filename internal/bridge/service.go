package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

// DefaultSendInterval is the snapshot broadcast period (4 Hz)
const DefaultSendInterval = 250 * time.Millisecond

// Renderer produces the current flight state
type Renderer interface {
	Render() *simdata.Snapshot
}

// Broadcaster fans raw JSON out to every connected consumer
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Service periodically renders the flight state and broadcasts it
type Service struct {
	renderer    Renderer
	broadcaster Broadcaster
	interval    time.Duration
	logger      *logger.Logger

	broadcasts atomic.Uint64
	stopOnce   sync.Once
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewService creates a broadcast service
func NewService(renderer Renderer, broadcaster Broadcaster, interval time.Duration, log *logger.Logger) *Service {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Service{
		renderer:    renderer,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      log.Named("broadcast"),
		stopCh:      make(chan struct{}),
	}
}

// Start starts the broadcast loop
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting broadcast service", logger.Duration("send_interval", s.interval))

	s.wg.Add(1)
	go s.broadcastLoop(ctx)
	return nil
}

// Stop stops the broadcast loop and waits for it to exit
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping broadcast service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Broadcasts returns how many snapshots have been sent
func (s *Service) Broadcasts() uint64 {
	return s.broadcasts.Load()
}

func (s *Service) broadcastLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.BroadcastOnce()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// BroadcastOnce renders the snapshot and sends it to every consumer
func (s *Service) BroadcastOnce() {
	snapshot := s.renderer.Render()
	if snapshot.Empty() {
		s.logger.Debug("Broadcasting empty snapshot", logger.Int("clients", s.broadcaster.ClientCount()))
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("Failed to marshal snapshot", logger.Error(err))
		return
	}

	s.broadcaster.Broadcast(data)
	s.broadcasts.Add(1)
}
