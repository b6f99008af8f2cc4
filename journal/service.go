package journal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/bossarena/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one boss event to persist.
type Entry struct {
	EncounterID string
	Type        string
	At          float64
	Payload     interface{}
}

// Options tunes batching. Zero values take the defaults.
type Options struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	return o
}

// Service writes combat events asynchronously in batches. Entries are dropped
// rather than blocking the simulation when the buffer is full.
type Service struct {
	db       *gorm.DB
	opts     Options
	ch       chan *model.CombatEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
	logger   *zap.Logger
}

// New creates a journal Service and starts its background worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	opts = opts.withDefaults()
	svc := &Service{
		db:     db,
		opts:   opts,
		ch:     make(chan *model.CombatEvent, opts.Buffer),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues an entry. It never blocks.
func (svc *Service) Record(entry Entry) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		svc.logger.Warn("journal payload not encodable",
			zap.String("type", entry.Type), zap.Error(err))
		payload = []byte("null")
	}
	ev := &model.CombatEvent{
		EncounterID: entry.EncounterID,
		Type:        entry.Type,
		At:          entry.At,
		Payload:     datatypes.JSON(payload),
	}
	select {
	case <-svc.stopCh:
		svc.dropped.Add(1)
		return
	default:
	}
	select {
	case svc.ch <- ev:
	default:
		svc.dropped.Add(1)
		svc.logger.Warn("journal channel full, dropping entry",
			zap.String("encounter_id", entry.EncounterID),
			zap.String("type", entry.Type))
	}
}

// Dropped is the number of entries discarded so far.
func (svc *Service) Dropped() int64 { return svc.dropped.Load() }

// Events returns the stored events of an encounter in simulation order.
func (svc *Service) Events(ctx context.Context, encounterID string, limit int) ([]model.CombatEvent, error) {
	var out []model.CombatEvent
	q := svc.db.WithContext(ctx).
		Where("encounter_id = ?", encounterID).
		Order("at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Stop flushes pending entries and waits for the worker to exit.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.CombatEvent, 0, svc.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(batch, svc.opts.BatchSize).Error; err != nil {
			svc.logger.Error("journal batch write failed",
				zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-svc.ch:
			batch = append(batch, ev)
			if len(batch) >= svc.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case ev := <-svc.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		}
	}
}
