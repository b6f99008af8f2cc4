package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apirest "github.com/kasuganosora/bossarena/api/rest"
	"github.com/kasuganosora/bossarena/api/sse"
	apows "github.com/kasuganosora/bossarena/api/ws"
	"github.com/kasuganosora/bossarena/cache"
	"github.com/kasuganosora/bossarena/config"
	"github.com/kasuganosora/bossarena/game/arena"
	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/kasuganosora/bossarena/journal"
	mw "github.com/kasuganosora/bossarena/middleware"
	"github.com/kasuganosora/bossarena/plugin/hook"
	"github.com/kasuganosora/bossarena/scheduler"
	"github.com/kasuganosora/bossarena/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// AdminKey is the admin key the test server accepts.
const AdminKey = "integration-admin"

// TestServer wraps a real HTTP server with every arena subsystem wired
// together the way main.go does it, including the scheduler that ticks
// encounters in real time.
type TestServer struct {
	DB      *gorm.DB
	Cache   cache.Cache
	PubSub  cache.PubSub
	Mgr     *arena.Manager
	Sched   *scheduler.Scheduler
	Journal *journal.Service
	Hooks   *hook.HookCenter
	Server  *httptest.Server
	URL     string // http://127.0.0.1:<port>
	WSURL   string // ws://127.0.0.1:<port>
	Sec     config.SecurityConfig

	cancel context.CancelFunc
}

// NewTestServer creates a fully wired arena server for integration testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
		AllowedOrigins: []string{},
	}

	sched := scheduler.New(logger)
	hooks := hook.NewHookCenter()
	j := journal.New(db, journal.Options{FlushInterval: 10 * time.Millisecond}, logger)
	stage := arena.NewStageAdvancer(db, c, hooks, logger)

	mgr := arena.NewManager(arena.Settings{
		Tuning:           boss.DefaultTuning(),
		DefaultLayout:    "open_field",
		MaxEncounters:    8,
		DefaultMaxHealth: 100,
		ProjectileTTL:    3,
		ProjectileRadius: 0.75,
		RecentEvents:     100,
		TickInterval:     10 * time.Millisecond,
		IdleTimeout:      time.Minute,
	}, map[string]*arena.Layout{"open_field": arena.DefaultLayout()}, arena.Deps{
		Scheduler: sched,
		Stage:     stage,
		Journal:   j,
		Cache:     c,
		PubSub:    pubsub,
		Hooks:     hooks,
		Logger:    logger,
	})
	mgr.Start()

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "encounters": mgr.Count()})
	})

	// ---- REST API routes (mirrors main.go) ----
	authH := apirest.NewAuthHandler(db, c, sec, logger)
	encH := apirest.NewEncounterHandler(mgr, j, db, logger)
	recH := apirest.NewRecordsHandler(db, stage, logger)
	adminH := apirest.NewAdminHandler(mgr, sched, j, logger)

	api := r.Group("/api")
	api.Use(mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		encG := api.Group("/encounters")
		encG.Use(mw.Auth(sec, c))
		encG.POST("", encH.Create)
		encG.GET("", encH.List)
		encG.GET("/:id", encH.Get)
		encG.DELETE("/:id", encH.Delete)
		encG.POST("/:id/damage", encH.Damage)
		encG.POST("/:id/heal", encH.Heal)
		encG.POST("/:id/player", encH.Player)
		encG.GET("/:id/gizmos", encH.Gizmos)
		encG.GET("/:id/events", encH.Events)
		encG.GET("/:id/journal", encH.Journal)

		authed := api.Group("")
		authed.Use(mw.Auth(sec, c))
		authed.GET("/records", recH.List)
		authed.GET("/records/:id", recH.Get)
		authed.GET("/leaderboard", recH.Leaderboard)
		authed.GET("/stage", recH.Stage)
	}

	adminG := r.Group("/admin")
	adminG.Use(apirest.AdminAuth(AdminKey))
	{
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/tickers", adminH.Tickers)
		adminG.GET("/encounters", adminH.Encounters)
		adminG.DELETE("/encounters/:id", adminH.CloseEncounter)
	}

	sseH := sse.NewHandler(mgr, pubsub, c, sec, logger)
	r.GET("/sse/encounters/:id", sseH.ServeEncounter)

	wsRouter := apows.NewRouter(logger)
	apows.RegisterEncounterHandlers(wsRouter, mgr)
	wsH := apows.NewHandler(mgr, pubsub, c, sec, wsRouter, logger)
	r.GET("/ws/encounters/:id", wsH.ServeEncounter)

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:      db,
		Cache:   c,
		PubSub:  pubsub,
		Mgr:     mgr,
		Sched:   sched,
		Journal: j,
		Hooks:   hooks,
		Server:  server,
		URL:     server.URL,
		WSURL:   "ws" + server.URL[len("http"):],
		Sec:     sec,
		cancel:  cancel,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts the server down in the same order main.go does.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Mgr.Stop(ctx)
	ts.Journal.Stop(ctx)
	ts.Sched.Stop()
	ts.cancel()
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and Bearer token.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodDelete, path, nil, token)
}

// Admin sends a request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", AdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and operator ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, operatorID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token      string `json:"token"`
		OperatorID int64  `json:"operator_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.OperatorID
}

// CreateEncounter creates an encounter and returns its first snapshot.
func (ts *TestServer) CreateEncounter(t *testing.T, token string, body any) arena.Snapshot {
	t.Helper()
	resp := ts.PostJSON(t, "/api/encounters", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap arena.Snapshot
	ReadJSON(t, resp, &snap)
	return snap
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop feeds readCh so a timed-out wait never poisons the
// connection with an expired read deadline.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the encounter control socket with the given JWT token.
func (ts *TestServer) ConnectWS(t *testing.T, encounterID, token string) *WSClient {
	t.Helper()
	url := ts.WSURL + "/ws/encounters/" + encounterID + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a packet and returns the sequence number it used.
func (wc *WSClient) Send(msgType string, payload any) uint64 {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteJSON(apows.Packet{Seq: seq, Type: msgType, Payload: raw}))
	return seq
}

// RecvAny reads one packet, returning an error on timeout or read failure.
func (wc *WSClient) RecvAny(timeout time.Duration) (apows.Packet, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return apows.Packet{}, res.err
		}
		var pkt apows.Packet
		err := json.Unmarshal(res.data, &pkt)
		return pkt, err
	case <-time.After(timeout):
		return apows.Packet{}, fmt.Errorf("read timeout after %s", timeout)
	}
}

// RecvType reads packets until one with the given type is found.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) apows.Packet {
	wc.t.Helper()
	return wc.RecvMatch(timeout, func(p apows.Packet) bool { return p.Type == msgType })
}

// EventEnvelope decodes p when it is a relayed boss event of eventType.
func EventEnvelope(p apows.Packet, eventType string) (map[string]any, bool) {
	if p.Type != "event" {
		return nil, false
	}
	var m map[string]any
	if json.Unmarshal(p.Payload, &m) != nil || m["type"] != eventType {
		return nil, false
	}
	return m, true
}

// RecvEvent reads packets until a boss event of the given type arrives and
// returns its decoded envelope.
func (wc *WSClient) RecvEvent(eventType string, timeout time.Duration) map[string]any {
	wc.t.Helper()
	var env map[string]any
	wc.RecvMatch(timeout, func(p apows.Packet) bool {
		m, ok := EventEnvelope(p, eventType)
		env = m
		return ok
	})
	return env
}

// RecvAll reads packets until every match has accepted one, in any order,
// and returns the accepted packets in match order. Events published while a
// command runs can overtake the command's reply.
func (wc *WSClient) RecvAll(timeout time.Duration, matches ...func(apows.Packet) bool) []apows.Packet {
	wc.t.Helper()
	got := make([]apows.Packet, len(matches))
	done := make([]bool, len(matches))
	left := len(matches)
	wc.RecvMatch(timeout, func(p apows.Packet) bool {
		for i, m := range matches {
			if !done[i] && m(p) {
				got[i], done[i] = p, true
				left--
				break
			}
		}
		return left == 0
	})
	return got
}

// RecvMatch reads packets until match accepts one.
func (wc *WSClient) RecvMatch(timeout time.Duration, match func(apows.Packet) bool) apows.Packet {
	wc.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out after %s waiting for packet", timeout)
		}
		pkt, err := wc.RecvAny(remaining)
		require.NoError(wc.t, err)
		if match(pkt) {
			return pkt
		}
	}
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

var testCounter uint64

// UniqueID returns a short unique string suitable for usernames.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
