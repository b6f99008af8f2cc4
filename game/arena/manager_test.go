package arena

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/journal"
	"github.com/kasuganosora/bossarena/model"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"github.com/kasuganosora/bossarena/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type managerEnv struct {
	mgr     *Manager
	db      *gorm.DB
	cache   cache.Cache
	pubsub  cache.PubSub
	hooks   *hook.HookCenter
	journal *journal.Service
	stage   *StageAdvancer
}

func newManagerEnv(t *testing.T, s Settings) *managerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	hooks := hook.NewHookCenter()
	j := journal.New(db, journal.Options{FlushInterval: 10 * time.Millisecond}, nil)
	t.Cleanup(func() { j.Stop(context.Background()) })
	stage := NewStageAdvancer(db, c, hooks, nil)

	if s.Tuning == (boss.Tuning{}) {
		s.Tuning = boss.DefaultTuning()
	}
	if s.DefaultLayout == "" {
		s.DefaultLayout = "open_field"
	}
	if s.DefaultMaxHealth == 0 {
		s.DefaultMaxHealth = 100
	}
	mgr := NewManager(s, nil, Deps{
		Stage:   stage,
		Journal: j,
		Cache:   c,
		PubSub:  ps,
		Hooks:   hooks,
	})
	return &managerEnv{mgr: mgr, db: db, cache: c, pubsub: ps, hooks: hooks, journal: j, stage: stage}
}

func seedOf(v int64) *int64 { return &v }

func TestManager_CreateGetList(t *testing.T) {
	env := newManagerEnv(t, Settings{})
	ctx := context.Background()

	a, err := env.mgr.Create(ctx, CreateRequest{Seed: seedOf(1), OperatorID: 9})
	require.NoError(t, err)
	b, err := env.mgr.Create(ctx, CreateRequest{Seed: seedOf(2)})
	require.NoError(t, err)

	got, err := env.mgr.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, int64(9), got.OperatorID)
	assert.Equal(t, 2, env.mgr.Count())

	list := env.mgr.List()
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{list[0].ID, list[1].ID})

	_, err = env.mgr.Get("missing")
	assert.ErrorIs(t, err, ErrEncounterNotFound)
}

func TestManager_CreateRejects(t *testing.T) {
	env := newManagerEnv(t, Settings{MaxEncounters: 1})
	ctx := context.Background()

	_, err := env.mgr.Create(ctx, CreateRequest{Layout: "nowhere"})
	assert.ErrorIs(t, err, ErrUnknownLayout)

	_, err = env.mgr.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	_, err = env.mgr.Create(ctx, CreateRequest{})
	assert.ErrorIs(t, err, ErrTooManyEncounters)
}

func TestManager_DamageHookCanRewriteAndVeto(t *testing.T) {
	env := newManagerEnv(t, Settings{})
	ctx := context.Background()
	enc, err := env.mgr.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	env.hooks.Register(hook.BeforeBossDamage, 0, "halve", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		dh := data.(*hook.DamageHook)
		if dh.Amount == 13 {
			return dh, hook.ErrInterrupt
		}
		dh.Amount /= 2
		return dh, nil
	})

	applied, err := env.mgr.Damage(ctx, enc.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, applied)

	_, err = env.mgr.Damage(ctx, enc.ID, 13)
	assert.ErrorIs(t, err, ErrDamageVetoed)
	assert.Equal(t, 95, enc.Snapshot().Boss.Health)
}

func TestManager_DefeatPersistsAndRanks(t *testing.T) {
	env := newManagerEnv(t, Settings{RecentEvents: 3})
	ctx := context.Background()

	var defeated atomic.Int32
	env.hooks.Register(hook.AfterBossDefeated, 0, "count", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		defeated.Add(1)
		return data, nil
	})
	var stateChanges atomic.Int32
	env.hooks.Register(hook.OnBossStateChanged, 0, "count", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		stateChanges.Add(1)
		return data, nil
	})

	enc, err := env.mgr.Create(ctx, CreateRequest{Seed: seedOf(3)})
	require.NoError(t, err)

	msgs, cancel, err := env.pubsub.Subscribe(ctx, Channel(enc.ID))
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, env.mgr.Step(enc.ID, 0.1))
	}
	_, err = env.mgr.Damage(ctx, enc.ID, 500)
	require.NoError(t, err)

	var first struct {
		EncounterID string `json:"encounter_id"`
		Type        string `json:"type"`
	}
	select {
	case m := <-msgs:
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &first))
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	assert.Equal(t, "health_changed", first.Type)
	assert.Equal(t, enc.ID, first.EncounterID)

	assert.Equal(t, int32(1), defeated.Load())
	assert.Equal(t, int32(2), stateChanges.Load())

	var rec model.EncounterRecord
	require.NoError(t, env.db.Where("encounter_id = ?", enc.ID).First(&rec).Error)
	assert.Equal(t, model.OutcomeDefeated, rec.Outcome)
	assert.Equal(t, int64(1), rec.Stage)
	assert.InDelta(t, 0.5, rec.KillTime, 1e-9)

	stage, err := env.stage.Stage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stage)

	board, err := env.stage.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, enc.ID, board[0].EncounterID)

	recent, err := env.mgr.RecentEvents(ctx, enc.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	var newest struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(recent[0], &newest))
	assert.Equal(t, "died", newest.Type)

	// the record is written once even when the encounter is removed later
	require.NoError(t, env.mgr.Remove(ctx, enc.ID))
	var count int64
	env.db.Model(&model.EncounterRecord{}).Where("encounter_id = ?", enc.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	env.journal.Stop(ctx)
	events, err := env.journal.Events(ctx, enc.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "state_changed", events[0].Type)
	assert.Equal(t, "died", events[len(events)-1].Type)
}

func TestManager_RemoveAbandons(t *testing.T) {
	env := newManagerEnv(t, Settings{})
	ctx := context.Background()

	var closed atomic.Int32
	env.hooks.Register(hook.OnEncounterClosed, 0, "count", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		closed.Add(1)
		return data, nil
	})

	enc, err := env.mgr.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	require.NoError(t, env.mgr.Remove(ctx, enc.ID))
	assert.ErrorIs(t, env.mgr.Remove(ctx, enc.ID), ErrEncounterNotFound)
	assert.Equal(t, int32(1), closed.Load())
	assert.True(t, enc.Closed())

	var rec model.EncounterRecord
	require.NoError(t, env.db.Where("encounter_id = ?", enc.ID).First(&rec).Error)
	assert.Equal(t, model.OutcomeAbandoned, rec.Outcome)

	stage, err := env.stage.Stage(ctx)
	require.NoError(t, err)
	assert.Zero(t, stage)
}

func TestManager_ReapIdle(t *testing.T) {
	env := newManagerEnv(t, Settings{IdleTimeout: time.Minute})
	ctx := context.Background()

	_, err := env.mgr.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	assert.Zero(t, env.mgr.ReapIdle(ctx, time.Now()))
	assert.Equal(t, 1, env.mgr.ReapIdle(ctx, time.Now().Add(2*time.Minute)))
	assert.Zero(t, env.mgr.Count())
}

func TestManager_SettingsAndLayouts(t *testing.T) {
	env := newManagerEnv(t, Settings{})
	ctx := context.Background()

	tuning := boss.DefaultTuning()
	tuning.MeleeRange = 9
	env.mgr.SetSettings(Settings{Tuning: tuning, DefaultLayout: "arena_b", DefaultMaxHealth: 50})
	assert.Equal(t, 9.0, env.mgr.Tuning().MeleeRange)

	_, err := env.mgr.Create(ctx, CreateRequest{})
	assert.ErrorIs(t, err, ErrUnknownLayout)

	b := DefaultLayout()
	b.Name = "arena_b"
	env.mgr.SetLayouts(map[string]*Layout{"arena_b": b})
	assert.Equal(t, []string{"arena_b"}, env.mgr.LayoutNames())

	enc, err := env.mgr.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "arena_b", enc.Layout)
	assert.Equal(t, 50, enc.Snapshot().Boss.MaxHealth)
	assert.Equal(t, 9.0, enc.Gizmos().Ranges[0].Radius)
}

func TestManager_StopAbandonsAll(t *testing.T) {
	env := newManagerEnv(t, Settings{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := env.mgr.Create(ctx, CreateRequest{})
		require.NoError(t, err)
	}
	env.mgr.Stop(ctx)
	assert.Zero(t, env.mgr.Count())

	var count int64
	env.db.Model(&model.EncounterRecord{}).Where("outcome = ?", model.OutcomeAbandoned).Count(&count)
	assert.Equal(t, int64(3), count)
}
