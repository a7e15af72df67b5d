package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/game"
	"github.com/hexhub/platform/internal/guard"
	"github.com/hexhub/platform/internal/service"
)

// --- RespondJSON Tests ---

func TestRespondJSON(t *testing.T) {
	t.Run("200 with body", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("204 with nil body", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondJSON(w, http.StatusNoContent, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

// --- RespondError Tests ---

func TestRespondError(t *testing.T) {
	t.Run("AppError maps to correct status", func(t *testing.T) {
		tests := []struct {
			err        *domain.AppError
			wantStatus int
			wantCode   string
		}{
			{domain.ErrNotFound("game", "t1"), 404, "NOT_FOUND"},
			{domain.ErrValidation("bad input"), 400, "VALIDATION_ERROR"},
			{domain.ErrLimitExceeded("sold out"), 409, "LIMIT_EXCEEDED"},
			{domain.ErrInsufficientResource("short"), 400, "INSUFFICIENT_RESOURCE"},
			{domain.ErrBadState("started"), 409, "BAD_STATE"},
			{domain.ErrConflict("duplicate"), 409, "CONFLICT"},
			{domain.ErrTooManyRequests("slow down"), 429, "TOO_MANY_REQUESTS"},
			{domain.ErrInternal("oops", nil), 500, "INTERNAL_ERROR"},
		}

		for _, tt := range tests {
			t.Run(tt.wantCode, func(t *testing.T) {
				w := httptest.NewRecorder()
				RespondError(w, tt.err)
				assert.Equal(t, tt.wantStatus, w.Code)

				var body map[string]string
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, body["code"])
				assert.Equal(t, tt.err.Message, body["message"])
			})
		}
	})

	t.Run("wrapped AppError keeps its status", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondError(w, fmt.Errorf("join: %w", domain.ErrNotFound("player", "bob")))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("generic error returns 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		RespondError(w, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "INTERNAL_ERROR", body["code"])
		assert.Equal(t, "internal server error", body["message"])
	})
}

// --- DecodeJSON Tests ---

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	t.Run("valid JSON body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"test","value":42}`))
		var dst payload
		require.NoError(t, DecodeJSON(r, &dst))
		assert.Equal(t, payload{Name: "test", Value: 42}, dst)
	})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{invalid`},
		{"unknown field", `{"name":"x","extra":1}`},
		{"trailing data", `{"name":"x"}{"name":"y"}`},
		{"oversized body", `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var dst payload
			err := DecodeJSON(r, &dst)
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.CodeValidation))
		})
	}
}

// --- ClientIP Tests ---

func TestClientIP(t *testing.T) {
	t.Run("X-Forwarded-For multiple IPs takes first", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
		assert.Equal(t, "1.2.3.4", ClientIP(r))
	})

	t.Run("no X-Forwarded-For uses RemoteAddr", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		assert.Equal(t, "10.0.0.1", ClientIP(r))
	})

	t.Run("RemoteAddr without port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1"
		assert.Equal(t, "10.0.0.1", ClientIP(r))
	})
}

// --- Middleware Tests ---

func TestRequestID(t *testing.T) {
	t.Run("generates ID when none provided", func(t *testing.T) {
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, GetRequestID(r.Context()))
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("uses provided X-Request-ID", func(t *testing.T) {
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "my-custom-id", GetRequestID(r.Context()))
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "my-custom-id")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "my-custom-id", w.Header().Get("X-Request-ID"))
	})

	t.Run("empty context", func(t *testing.T) {
		assert.Empty(t, GetRequestID(context.Background()))
	})
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("wildcard", func(t *testing.T) {
		w := httptest.NewRecorder()
		CORS([]string{"*"})(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), IdempotencyHeader)
	})

	t.Run("listed origin is echoed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://table.example")
		w := httptest.NewRecorder()
		CORS([]string{"https://table.example"})(ok).ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://table.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets no allow header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://other.example")
		w := httptest.NewRecorder()
		CORS([]string{"https://table.example"})(ok).ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		h := Recovery(noopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("something went wrong")
		}))
		w := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	})

	t.Run("unknown kind panic answers 500", func(t *testing.T) {
		h := Recovery(noopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(fmt.Errorf("%w: resource 9", domain.ErrUnknownKind))
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("passes through without panic", func(t *testing.T) {
		h := Recovery(noopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	rl := guard.NewRateLimiter(2, time.Minute)
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/games", nil)
		r.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusCreated, send("1.1.1.1").Code)
	assert.Equal(t, http.StatusCreated, send("1.1.1.1").Code)

	w := send("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), domain.CodeTooManyRequests)

	assert.Equal(t, http.StatusCreated, send("2.2.2.2").Code, "limits are per client")
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status", func(t *testing.T) {
		w := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: w, status: 200}
		rw.WriteHeader(http.StatusNotFound)
		assert.Equal(t, 404, rw.status)
		assert.Equal(t, 404, w.Code)
		assert.Same(t, w, rw.Unwrap())
	})

	t.Run("hijack without support", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: 200}
		_, _, err := rw.Hijack()
		assert.Error(t, err)
	})
}

// --- Health Tests ---

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := HealthHandler(HealthProbe{
			Games:       func() int { return 3 },
			Subscribers: func() int { return 2 },
			Dropped:     func() uint64 { return 1 },
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
		assert.EqualValues(t, 3, body["games"])
		assert.EqualValues(t, 2, body["subscribers"])
		assert.EqualValues(t, 1, body["relay_dropped"])
	})

	t.Run("archive down", func(t *testing.T) {
		h := HealthHandler(HealthProbe{
			Archive: func(context.Context) error { return errors.New("connection refused") },
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

// --- Game, player and action handlers ---

func newTestRouter(t *testing.T, monitorTimeout time.Duration) (http.Handler, *service.GameService) {
	t.Helper()
	svc := service.NewGameService(game.NewRegistry(), service.Fanout{}, service.Options{
		Defaults:       domain.DefaultGameInfo(),
		MonitorTimeout: monitorTimeout,
	}, noopLogger())

	games := NewGameHandler(svc)
	players := NewPlayerHandler(svc)
	actions := NewActionHandler(svc, guard.NewIdempotencyGuard(time.Minute))

	r := chi.NewRouter()
	r.Post("/games", games.CreateGame)
	r.Get("/games", games.ListGames)
	r.Get("/games/{game}", games.GetGame)
	r.Delete("/games/{game}", games.DeleteGame)
	r.Post("/games/{game}/start", games.StartGame)
	r.Post("/games/{game}/players", players.Join)
	r.Get("/games/{game}/players/{player}", players.GetPlayer)
	r.Delete("/games/{game}/players/{player}", players.Leave)
	r.Get("/games/{game}/players/{player}/monitor", players.Monitor)
	r.Post("/games/{game}/players/{player}/resources", actions.ChangeResources)
	r.Post("/games/{game}/players/{player}/trade", actions.Trade)
	r.Post("/games/{game}/players/{player}/purchase", actions.Purchase)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestGameHandler_Lifecycle(t *testing.T) {
	h, _ := newTestRouter(t, time.Second)

	w := do(t, h, http.MethodPost, "/games", `{"key":"Table1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"state":"open"`)

	w = do(t, h, http.MethodPost, "/games", `{"key":"table1"}`)
	assert.Equal(t, http.StatusOK, w.Code, "same folded key returns the existing game")

	w = do(t, h, http.MethodPost, "/games/table1/players", `{"name":"Alice"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/games/TABLE1/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"started"`)

	w = do(t, h, http.MethodPost, "/games/table1/players", `{"name":"bob"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), domain.CodeBadState)

	w = do(t, h, http.MethodGet, "/games", "")
	var list []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Table1", list[0]["key"])

	w = do(t, h, http.MethodDelete, "/games/table1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/games/table1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGameHandler_Validation(t *testing.T) {
	h, _ := newTestRouter(t, time.Second)

	w := do(t, h, http.MethodPost, "/games", `{"key":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/games", `{"key":"t1","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/games/nope/start", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActionHandler_ResourcesAndSnapshot(t *testing.T) {
	h, _ := newTestRouter(t, time.Second)
	do(t, h, http.MethodPost, "/games", `{"key":"t1"}`)
	do(t, h, http.MethodPost, "/games/t1/players", `{"name":"alice"}`)

	w := do(t, h, http.MethodPost, "/games/t1/players/alice/resources", `{"delta":{"brick":2,"wood":1}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Ledger struct {
			Resources map[string]int `json:"resources"`
		} `json:"ledger"`
		Event struct {
			Kind string `json:"kind"`
			Undo struct {
				Route string `json:"route"`
			} `json:"undo"`
		} `json:"event"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, map[string]int{"brick": 2, "wood": 1}, out.Ledger.Resources)
	assert.Equal(t, "ResourceChange", out.Event.Kind)
	assert.Equal(t, "/games/t1/players/alice/resources", out.Event.Undo.Route)

	w = do(t, h, http.MethodPost, "/games/t1/players/alice/resources", `{"delta":{"ore":-1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.CodeInsufficientResource)

	w = do(t, h, http.MethodGet, "/games/t1/players/ALICE", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"brick":2`)
}

func TestActionHandler_Idempotency(t *testing.T) {
	h, svc := newTestRouter(t, time.Second)
	do(t, h, http.MethodPost, "/games", `{"key":"t1"}`)
	do(t, h, http.MethodPost, "/games/t1/players", `{"name":"alice"}`)

	grant := `{"delta":{"wheat":1}}`
	w := do(t, h, http.MethodPost, "/games/t1/players/alice/resources", grant, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/games/t1/players/alice/resources", grant, IdempotencyHeader, "k1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), domain.CodeConflict)

	snap, err := svc.Snapshot("t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Resources[domain.Wheat], "duplicate is not applied")

	// A failed mutation releases its key for a retry.
	w = do(t, h, http.MethodPost, "/games/t1/players/alice/purchase", `{"item":"road"}`, IdempotencyHeader, "k2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	do(t, h, http.MethodPost, "/games/t1/players/alice/resources", `{"delta":{"wood":1,"brick":1}}`)
	w = do(t, h, http.MethodPost, "/games/t1/players/alice/purchase", `{"item":"road"}`, IdempotencyHeader, "k2")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPlayerHandler_Monitor(t *testing.T) {
	t.Run("timeout returns empty list", func(t *testing.T) {
		h, _ := newTestRouter(t, 20*time.Millisecond)
		do(t, h, http.MethodPost, "/games", `{"key":"t1"}`)
		do(t, h, http.MethodPost, "/games/t1/players", `{"name":"alice"}`)
		// Drain the join notice.
		do(t, h, http.MethodGet, "/games/t1/players/alice/monitor", "")

		w := do(t, h, http.MethodGet, "/games/t1/players/alice/monitor", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("returns events posted by another player", func(t *testing.T) {
		h, _ := newTestRouter(t, 5*time.Second)
		do(t, h, http.MethodPost, "/games", `{"key":"t1"}`)
		do(t, h, http.MethodPost, "/games/t1/players", `{"name":"alice"}`)
		do(t, h, http.MethodPost, "/games/t1/players", `{"name":"bob"}`)
		do(t, h, http.MethodGet, "/games/t1/players/alice/monitor", "")

		done := make(chan *httptest.ResponseRecorder, 1)
		go func() { done <- do(t, h, http.MethodGet, "/games/t1/players/alice/monitor", "") }()

		require.Eventually(t, func() bool {
			w := do(t, h, http.MethodPost, "/games/t1/players/bob/resources", `{"delta":{"ore":1}}`)
			return w.Code == http.StatusOK
		}, time.Second, 10*time.Millisecond)

		select {
		case w := <-done:
			require.Equal(t, http.StatusOK, w.Code)
			var recs []map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
			require.NotEmpty(t, recs)
			assert.Equal(t, "bob", recs[len(recs)-1]["player"])
		case <-time.After(3 * time.Second):
			t.Fatal("monitor did not return")
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		h, _ := newTestRouter(t, time.Second)
		do(t, h, http.MethodPost, "/games", `{"key":"t1"}`)
		w := do(t, h, http.MethodGet, "/games/t1/players/ghost/monitor", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// helper

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
