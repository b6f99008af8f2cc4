package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a one-shot delayed task.
type TaskFn func()

// TickFn is a periodic task. dt is the wall time since its previous run (the
// interval on the first run).
type TickFn func(dt time.Duration)

// TickerInfo describes a registered ticker.
type TickerInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	Panics   int64         `json:"panics"`
}

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu       sync.Mutex
	tickers  map[string]*tickerEntry
	timers   map[string]*time.Timer
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

type tickerEntry struct {
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	runs     atomic.Int64
	panics   atomic.Int64
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker registers fn to run every interval. A task with the same name is
// replaced. Runs of one ticker never overlap.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TickFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		interval: interval,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		defer entry.ticker.Stop()
		last := time.Now()
		for {
			select {
			case now := <-entry.ticker.C:
				dt := now.Sub(last)
				last = now
				s.runTick(name, entry, fn, dt)
			case <-entry.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) runTick(name string, entry *tickerEntry, fn TickFn, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			entry.panics.Add(1)
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	entry.runs.Add(1)
	fn(dt)
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("delay task panicked",
					zap.String("task", name), zap.Any("recover", r))
			}
			s.mu.Lock()
			if s.timers[name] == timer {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}()
		fn()
	})
	s.timers[name] = timer
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop stops all tasks. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		for _, t := range s.timers {
			t.Stop()
		}
		s.mu.Unlock()
	})
}

// ListTickers returns the sorted names of all registered tickers.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tickers returns run statistics for every ticker, sorted by name.
func (s *Scheduler) Tickers() []TickerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TickerInfo, 0, len(s.tickers))
	for name, e := range s.tickers {
		out = append(out, TickerInfo{
			Name:     name,
			Interval: e.interval,
			Runs:     e.runs.Load(),
			Panics:   e.panics.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
