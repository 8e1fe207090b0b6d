package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"promobot/internal/eventbus"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

const historyMax = 100

// Service implements Sink as an async pipeline:
// queue + worker pool + rate limit + dedup window.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	target kit.ChatTarget
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	queue   chan Event
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, target kit.ChatTarget, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		target: target,
		bus:    bus,
		dedup:  map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.sender != nil
}

// Apply updates rate/dedup knobs at runtime. Worker count changes require a
// restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || !s.cfg.Enabled || s.sender == nil {
		return
	}
	s.started = true
	s.queue = make(chan Event, s.cfg.QueueSize)
	s.runCtx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workerLoop(s.runCtx)
		}()
	}
	s.log.Info("notifier started", logx.Int("workers", s.cfg.Workers))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Notify enqueues an event. It never blocks: a full queue, a stopped service,
// or a suppressed duplicate all silently drop the event.
func (s *Service) Notify(e Event) {
	s.mu.Lock()
	q := s.queue
	started := s.started
	enabled := s.cfg.Enabled
	window := s.cfg.DedupWindow
	s.mu.Unlock()

	if !enabled || !started || q == nil {
		return
	}
	if e.Key != "" && window > 0 && s.suppressed(e.Key, window) {
		s.log.Debug("notification suppressed by dedup", logx.String("key", e.Key))
		return
	}

	select {
	case q <- e:
	default:
		s.log.Warn("notifier queue full, dropping event", logx.String("kind", e.Kind))
	}
}

func (s *Service) suppressed(key string, window time.Duration) bool {
	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return true
	}
	s.dedup[key] = now.Add(window)
	// Opportunistic prune.
	for k, until := range s.dedup {
		if now.After(until) {
			delete(s.dedup, k)
		}
	}
	return false
}

func (s *Service) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			s.deliver(ctx, e)
		}
	}
}

func (s *Service) deliver(ctx context.Context, e Event) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := s.sender.SendText(sendCtx, s.target, e.Text, &kit.SendOptions{DisablePreview: true})
	cancel()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeNotifierDelivery, Data: deliveryNote(e, err)})
	}
	if err != nil {
		// Best-effort: log and move on; no retries into the caller's path.
		s.log.Warn("notification delivery failed", logx.String("kind", e.Kind), logx.Err(err))
		return
	}
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Kind: e.Kind, Text: e.Text})
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

// History returns recent successfully delivered notifications (newest last).
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

type delivery struct {
	Kind  string `json:"kind"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error,omitempty"`
}

func deliveryNote(e Event, err error) delivery {
	d := delivery{Kind: e.Kind, Key: e.Key}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}
