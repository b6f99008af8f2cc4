package arena

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/model"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StageKey       = "boss:stage"
	LeaderboardKey = "boss:leaderboard"
)

var _ boss.StageProgression = (*stageLatch)(nil)

// stageLatch is the boss's StageProgression inside an encounter. It only
// remembers the defeat; the manager persists it once the encounter lock is
// released.
type stageLatch struct {
	advanced int
}

func (l *stageLatch) AdvanceStage() { l.advanced++ }

// LeaderboardEntry is one ranked kill.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	EncounterID string  `json:"encounter_id"`
	KillTime    float64 `json:"kill_time"`
}

// StageAdvancer persists finished encounters. A defeat also advances the
// global boss stage, ranks the kill time and fires after_boss_defeated.
// Every dependency is optional.
type StageAdvancer struct {
	db     *gorm.DB
	cache  cache.Cache
	hooks  *hook.HookCenter
	logger *zap.Logger
}

func NewStageAdvancer(db *gorm.DB, c cache.Cache, hooks *hook.HookCenter, logger *zap.Logger) *StageAdvancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageAdvancer{db: db, cache: c, hooks: hooks, logger: logger}
}

// Persist stores rec. Cache failures are logged; only the database write is
// reported as an error.
func (s *StageAdvancer) Persist(ctx context.Context, rec *model.EncounterRecord) error {
	defeated := rec.Outcome == model.OutcomeDefeated
	if defeated && s.cache != nil {
		stage, err := s.cache.Incr(ctx, StageKey)
		if err != nil {
			s.logger.Warn("boss stage increment failed", zap.Error(err))
		}
		rec.Stage = stage
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
			return fmt.Errorf("arena: persist encounter %s: %w", rec.EncounterID, err)
		}
	}

	if !defeated {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.ZAdd(ctx, LeaderboardKey, rec.KillTime, rec.EncounterID); err != nil {
			s.logger.Warn("leaderboard update failed", zap.Error(err))
		}
	}
	if s.hooks != nil {
		if _, err := s.hooks.Trigger(ctx, hook.AfterBossDefeated, rec); err != nil {
			s.logger.Debug("after_boss_defeated interrupted", zap.Error(err))
		}
	}
	s.logger.Info("boss stage advanced",
		zap.String("encounter_id", rec.EncounterID),
		zap.Int64("stage", rec.Stage),
		zap.Float64("kill_time", rec.KillTime))
	return nil
}

// Stage returns the number of bosses defeated so far.
func (s *StageAdvancer) Stage(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	v, err := s.cache.Get(ctx, StageKey)
	if cache.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// Leaderboard returns the n fastest kills.
func (s *StageAdvancer) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if s.cache == nil || n <= 0 {
		return []LeaderboardEntry{}, nil
	}
	ids, err := s.cache.ZRange(ctx, LeaderboardKey, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		score, err := s.cache.ZScore(ctx, LeaderboardKey, id)
		if err != nil {
			s.logger.Warn("leaderboard score lookup failed", zap.String("encounter_id", id), zap.Error(err))
			continue
		}
		out = append(out, LeaderboardEntry{Rank: len(out) + 1, EncounterID: id, KillTime: score})
	}
	return out, nil
}
