package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notifyd/internal/eventbus"
	"notifyd/internal/metrics"
	logx "notifyd/pkg/logx"
)

type registration struct {
	handler HandlerFunc
	failure FailureFunc
}

// Service drains the queue with a worker pool and routes each message to
// its registered handler.
//
// It is panic-safe (worker goroutines and handlers recover), and
// cooperates with shutdown via Start/Stop.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	sink  metrics.Sink
	cfg   Config
	queue Queue

	handlers map[Kind]registration

	stopCh    chan struct{}
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, queue Queue, sink metrics.Sink, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sink == nil {
		sink = metrics.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		queue:    queue,
		sink:     sink,
		log:      log,
		bus:      bus,
		handlers: map[Kind]registration{},
	}
}

// Register binds a message kind to its processing and failure functions.
// Registering after Start is not supported.
func (s *Service) Register(kind Kind, handler HandlerFunc, failure FailureFunc) {
	s.mu.Lock()
	s.handlers[kind] = registration{handler: handler, failure: failure}
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()

	// If a Stop() is in progress, let it finish first.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.stopCh != nil {
		// already running
		s.mu.Unlock()
		return
	}

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	runCtx := s.runCtx
	stopCh := s.stopCh

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in dispatch worker",
						logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 16)))
				}
			}()
			s.log.Debug("worker started", logx.Int("worker", idx))
			s.worker(runCtx, stopCh, idx)
			s.log.Debug("worker stopped", logx.Int("worker", idx))
		}()
	}
	s.mu.Unlock()

	s.log.Info("dispatcher started", logx.Int("workers", workers))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("dispatcher stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, idx int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		msg, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			s.log.Warn("dequeue failed", logx.Int("worker", idx), logx.Err(err))
			continue
		}
		s.Process(ctx, msg)
	}
}

// Process runs one message through its handler with the full containment
// policy. It never returns an error and never panics: a failing message
// must not stop consumption of subsequent messages.
func (s *Service) Process(ctx context.Context, msg Message) {
	s.mu.Lock()
	reg, ok := s.handlers[msg.Kind]
	s.mu.Unlock()

	if !ok {
		s.log.Error("no handler registered for message kind", logx.String("kind", string(msg.Kind)), logx.String("id", msg.ID))
		s.sink.Counter(metrics.MessagesFailed, 1)
		return
	}

	start := time.Now()
	err := s.runHandler(ctx, reg.handler, msg)
	s.sink.Timing(metrics.DispatchHandleTime, time.Since(start))

	if err == nil {
		s.publish("message.handled", msg, "")
		return
	}

	s.sink.Counter(metrics.MessagesFailed, 1)
	s.publish("message.failed", msg, err.Error())
	if reg.failure != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in failure handler", logx.String("kind", string(msg.Kind)), logx.Any("panic", r))
				}
			}()
			reg.failure(ctx, msg, err)
		}()
	}
}

func (s *Service) runHandler(ctx context.Context, handler HandlerFunc, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s message: %v", msg.Kind, r)
		}
	}()
	return handler(ctx, msg)
}

func (s *Service) publish(typ string, msg Message, detail string) {
	if s.bus == nil {
		return
	}
	data := map[string]any{"id": msg.ID, "kind": string(msg.Kind)}
	if detail != "" {
		data["error"] = detail
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
