package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bossarena/api/rest"
	"github.com/kasuganosora/bossarena/game/arena"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/journal"
	mw "github.com/kasuganosora/bossarena/middleware"
	"github.com/kasuganosora/bossarena/model"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"github.com/kasuganosora/bossarena/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type arenaEnv struct {
	r       *gin.Engine
	db      *gorm.DB
	mgr     *arena.Manager
	hooks   *hook.HookCenter
	journal *journal.Service
}

func newArenaEnv(t *testing.T) *arenaEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	hooks := hook.NewHookCenter()
	j := journal.New(db, journal.Options{FlushInterval: 10 * time.Millisecond}, nil)
	t.Cleanup(func() { j.Stop(context.Background()) })
	stage := arena.NewStageAdvancer(db, c, hooks, nil)
	mgr := arena.NewManager(arena.Settings{
		Tuning:           boss.DefaultTuning(),
		DefaultLayout:    "open_field",
		MaxEncounters:    4,
		DefaultMaxHealth: 100,
		ProjectileTTL:    3,
		ProjectileRadius: 0.75,
		RecentEvents:     50,
	}, nil, arena.Deps{Stage: stage, Journal: j, Cache: c, PubSub: ps, Hooks: hooks})

	auth := rest.NewAuthHandler(db, c, testSec, nil)
	eh := rest.NewEncounterHandler(mgr, j, db, nil)
	rh := rest.NewRecordsHandler(db, stage, nil)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/login", auth.Login)
	authed := api.Group("", mw.Auth(testSec, c))
	authed.POST("/encounters", eh.Create)
	authed.GET("/encounters", eh.List)
	authed.GET("/encounters/:id", eh.Get)
	authed.DELETE("/encounters/:id", eh.Delete)
	authed.POST("/encounters/:id/damage", eh.Damage)
	authed.POST("/encounters/:id/heal", eh.Heal)
	authed.POST("/encounters/:id/player", eh.Player)
	authed.GET("/encounters/:id/gizmos", eh.Gizmos)
	authed.GET("/encounters/:id/events", eh.Events)
	authed.GET("/encounters/:id/journal", eh.Journal)
	authed.GET("/records", rh.List)
	authed.GET("/records/:id", rh.Get)
	authed.GET("/leaderboard", rh.Leaderboard)
	authed.GET("/stage", rh.Stage)

	return &arenaEnv{r: r, db: db, mgr: mgr, hooks: hooks, journal: j}
}

func bearer(token string) []string { return []string{"Authorization", "Bearer " + token} }

func createEncounter(t *testing.T, env *arenaEnv, token string, body interface{}) arena.Snapshot {
	t.Helper()
	w := doJSON(env.r, http.MethodPost, "/api/encounters", body, bearer(token)...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var snap arena.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestEncounters_RequireAuth(t *testing.T) {
	env := newArenaEnv(t)
	w := doJSON(env.r, http.MethodGet, "/api/encounters", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEncounters_CreateAndGet(t *testing.T) {
	env := newArenaEnv(t)
	token, opID := login(t, env.r, "alice")

	snap := createEncounter(t, env, token, map[string]interface{}{"seed": 42, "max_health": 300})
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, opID, snap.OperatorID)
	assert.Equal(t, int64(42), snap.Seed)
	assert.Equal(t, 300, snap.Boss.MaxHealth)
	assert.Equal(t, "open_field", snap.Layout)

	w := doJSON(env.r, http.MethodGet, "/api/encounters/"+snap.ID, nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ID   string `json:"id"`
		Boss struct {
			State string `json:"state"`
		} `json:"boss"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "idle", got.Boss.State)

	w = doJSON(env.r, http.MethodGet, "/api/encounters", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Encounters []arena.Snapshot `json:"encounters"`
		Layouts    []string         `json:"layouts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Encounters, 1)
	assert.Equal(t, []string{"open_field"}, list.Layouts)
}

func TestEncounters_CreateWithoutBody(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, nil)
	assert.Equal(t, 100, snap.Boss.MaxHealth)
}

func TestEncounters_CreateRejects(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")

	w := doJSON(env.r, http.MethodPost, "/api/encounters", map[string]string{"layout": "nowhere"}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(env.r, http.MethodPost, "/api/encounters", map[string]int{"max_health": -1}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 4; i++ {
		createEncounter(t, env, token, nil)
	}
	w = doJSON(env.r, http.MethodPost, "/api/encounters", nil, bearer(token)...)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEncounters_OtherOperatorSeesNothing(t *testing.T) {
	env := newArenaEnv(t)
	alice, _ := login(t, env.r, "alice")
	bob, _ := login(t, env.r, "bob")
	snap := createEncounter(t, env, alice, nil)

	w := doJSON(env.r, http.MethodGet, "/api/encounters/"+snap.ID, nil, bearer(bob)...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(env.r, http.MethodPost, "/api/encounters/"+snap.ID+"/damage", map[string]int{"amount": 10}, bearer(bob)...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(env.r, http.MethodDelete, "/api/encounters/"+snap.ID, nil, bearer(bob)...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(env.r, http.MethodGet, "/api/encounters", nil, bearer(bob)...)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Encounters []arena.Snapshot `json:"encounters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Encounters)
}

func TestEncounters_DamageAndHeal(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, nil)
	base := "/api/encounters/" + snap.ID

	w := doJSON(env.r, http.MethodPost, base+"/damage", map[string]int{"amount": 10}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var dmg struct {
		Applied int    `json:"applied"`
		Health  int    `json:"health"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dmg))
	assert.Equal(t, 10, dmg.Applied)
	assert.Equal(t, 90, dmg.Health)
	assert.Equal(t, "idle", dmg.State)

	w = doJSON(env.r, http.MethodPost, base+"/heal", map[string]int{"amount": 50}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var heal struct {
		Restored int `json:"restored"`
		Health   int `json:"health"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &heal))
	assert.Equal(t, 10, heal.Restored)
	assert.Equal(t, 100, heal.Health)

	w = doJSON(env.r, http.MethodPost, base+"/damage", map[string]int{"amount": 0}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncounters_DamageVetoed(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, nil)

	env.hooks.Register(hook.BeforeBossDamage, 0, "veto", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data, hook.ErrInterrupt
	})
	w := doJSON(env.r, http.MethodPost, "/api/encounters/"+snap.ID+"/damage", map[string]int{"amount": 10}, bearer(token)...)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEncounters_KillIsRecorded(t *testing.T) {
	env := newArenaEnv(t)
	token, opID := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, map[string]int{"seed": 5})
	base := "/api/encounters/" + snap.ID

	require.NoError(t, env.mgr.Step(snap.ID, 0.1))
	w := doJSON(env.r, http.MethodPost, base+"/damage", map[string]int{"amount": 1000}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.r, http.MethodPost, base+"/damage", map[string]int{"amount": 1}, bearer(token)...)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(env.r, http.MethodGet, base+"/events?limit=2", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var events struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events.Events, 2)
	assert.Equal(t, "died", events.Events[0].Type)
	assert.Equal(t, "state_changed", events.Events[1].Type)

	w = doJSON(env.r, http.MethodGet, "/api/records", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var records struct {
		Records []model.EncounterRecord `json:"records"`
		Total   int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Equal(t, int64(1), records.Total)
	assert.Equal(t, snap.ID, records.Records[0].EncounterID)
	assert.Equal(t, opID, records.Records[0].OperatorID)
	assert.Equal(t, model.OutcomeDefeated, records.Records[0].Outcome)

	w = doJSON(env.r, http.MethodGet, "/api/records/"+snap.ID, nil, bearer(token)...)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.r, http.MethodGet, "/api/leaderboard", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Leaderboard []arena.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Leaderboard, 1)
	assert.Equal(t, 1, board.Leaderboard[0].Rank)
	assert.InDelta(t, 0.1, board.Leaderboard[0].KillTime, 1e-9)

	w = doJSON(env.r, http.MethodGet, "/api/stage", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stage":1}`, w.Body.String())

	// the journal outlives the live encounter
	w = doJSON(env.r, http.MethodDelete, base, nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	env.journal.Stop(context.Background())

	w = doJSON(env.r, http.MethodGet, base+"/journal", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var journaled struct {
		Events []model.CombatEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &journaled))
	require.NotEmpty(t, journaled.Events)
	assert.Equal(t, "died", journaled.Events[len(journaled.Events)-1].Type)

	bob, _ := login(t, env.r, "bob")
	w = doJSON(env.r, http.MethodGet, base+"/journal", nil, bearer(bob)...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(env.r, http.MethodGet, "/api/records/"+snap.ID, nil, bearer(bob)...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEncounters_Player(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, nil)
	path := "/api/encounters/" + snap.ID + "/player"

	w := doJSON(env.r, http.MethodPost, path, map[string]float64{"x": 12, "y": 8}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var player arena.PlayerSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &player))
	assert.Equal(t, 12.0, player.Position.X)
	assert.Equal(t, 8.0, player.Position.Y)
	assert.True(t, player.Present)

	w = doJSON(env.r, http.MethodPost, path, map[string]bool{"present": false}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &player))
	assert.False(t, player.Present)

	w = doJSON(env.r, http.MethodPost, path, map[string]float64{"x": 1}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(env.r, http.MethodPost, path, map[string]float64{}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncounters_GizmosAndDelete(t *testing.T) {
	env := newArenaEnv(t)
	token, _ := login(t, env.r, "alice")
	snap := createEncounter(t, env, token, nil)
	base := "/api/encounters/" + snap.ID

	w := doJSON(env.r, http.MethodGet, base+"/gizmos", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var g arena.Gizmos
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	require.NotEmpty(t, g.Ranges)
	assert.Equal(t, "melee", g.Ranges[0].Name)
	assert.Equal(t, 4.0, g.Ranges[0].Radius)

	w = doJSON(env.r, http.MethodDelete, base, nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(env.r, http.MethodGet, base, nil, bearer(token)...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(env.r, http.MethodGet, "/api/records?outcome=abandoned", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var records struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Equal(t, int64(1), records.Total)
}
