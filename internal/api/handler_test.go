package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dorm-assignment-backend/config"
	"dorm-assignment-backend/internal/assign"
	"dorm-assignment-backend/internal/db"
	"dorm-assignment-backend/internal/metrics"
	"dorm-assignment-backend/internal/model"
	"dorm-assignment-backend/internal/mw"
	"dorm-assignment-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, seed config.SeedConfig) (*gin.Engine, store.Store) {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.Migrate(gormDB))
	_, err = db.Seed(context.Background(), gormDB, seed, zaptest.NewLogger(t))
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	s := store.NewGormStore(gormDB)
	reg := prometheus.NewRegistry()
	responseCache := mw.NewResponseCache(time.Minute, time.Minute)
	svc := assign.NewService(s, log,
		assign.WithMetrics(metrics.NewCollector(reg)),
		assign.WithCommitHook(responseCache.Flush))
	h := NewHandler(s, svc, &webpush.Options{VAPIDPublicKey: "test-public-key"}, log)
	return NewRouter(h, mw.NewClientLimiter(rate.Limit(1000), 1000), responseCache, reg, log), s
}

func doJSON(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func personBody(personalID string, distance int) gin.H {
	return gin.H{
		"personal_id": personalID,
		"first_name":  "Avi",
		"last_name":   "Cohen",
		"gender":      "m",
		"lives_at":    "Haifa",
		"distance":    distance,
	}
}

// untouchedStore fails the test if any storage method is reached.
type untouchedStore struct {
	store.Store
	t *testing.T
}

func (u untouchedStore) CreatePerson(context.Context, store.NewPerson) (model.Person, error) {
	u.t.Fatal("storage must not be touched")
	return model.Person{}, nil
}

func TestCreatePerson_RejectsInvalidInput(t *testing.T) {
	h := NewHandler(untouchedStore{t: t}, nil, nil, zaptest.NewLogger(t))
	r := gin.New()
	r.POST("/api/people", h.CreatePerson)

	testCases := []struct {
		name    string
		body    gin.H
		message string
	}{
		{"too short", personBody("123456", 5), "field personal_id must be 7 digits starting with 8"},
		{"wrong prefix", personBody("7123456", 5), "field personal_id must be 7 digits starting with 8"},
		{"not numeric", personBody("81234a6", 5), "field personal_id must be 7 digits starting with 8"},
		{"negative distance", personBody("8123456", -1), "field distance must be at least 0"},
		{"missing distance", gin.H{"personal_id": "8123456", "first_name": "a", "last_name": "b"}, "field distance is required"},
		{"missing names", gin.H{"personal_id": "8123456", "distance": 3}, "field first_name is required, field last_name is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/people", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.message), w.Body.String())
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/people", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
	})
}

func TestAssignmentFlow(t *testing.T) {
	r, _ := newTestRouter(t, config.SeedConfig{Dorms: []string{"Dorm A"}, RoomsPerDorm: 2, RoomCapacity: 1})

	ids := make([]int64, 0, 3)
	for i, d := range []int{50, 10, 30} {
		w := doJSON(t, r, http.MethodPost, "/api/people", personBody(fmt.Sprintf("800000%d", i), d))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		p := decode[model.Person](t, w)
		assert.Equal(t, model.StateWaiting, p.State)
		ids = append(ids, p.ID)
	}

	w := doJSON(t, r, http.MethodPost, "/api/people", personBody("8000000", 1))
	assert.Equal(t, http.StatusConflict, w.Code)

	type waitingList struct {
		Count   int            `json:"count"`
		Message string         `json:"message"`
		People  []waitingEntry `json:"people"`
	}
	waiting := decode[waitingList](t, doJSON(t, r, http.MethodGet, "/api/waiting", nil))
	assert.Equal(t, 3, waiting.Count)
	assert.Equal(t, "there are 3 waiting to be assigned a room", waiting.Message)
	require.Len(t, waiting.People, 3)
	assert.Equal(t, []int64{ids[0], ids[2], ids[1]},
		[]int64{waiting.People[0].DBID, waiting.People[1].DBID, waiting.People[2].DBID})
	assert.Equal(t, "Avi Cohen", waiting.People[0].FullName)

	w = doJSON(t, r, http.MethodPost, "/api/assign", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[assign.Result](t, w)
	assert.NotEmpty(t, result.PassID)
	assert.Equal(t, 2, result.AssignedCount)
	assert.Equal(t, 1, result.StillWaitingCount)
	require.Len(t, result.Assignments, 2)
	assert.Equal(t, ids[0], result.Assignments[0].PersonID)
	assert.Equal(t, ids[2], result.Assignments[1].PersonID)

	// The cached waiting list was flushed by the pass.
	waiting = decode[waitingList](t, doJSON(t, r, http.MethodGet, "/api/waiting", nil))
	assert.Equal(t, 1, waiting.Count)
	assert.Equal(t, ids[1], waiting.People[0].DBID)

	dorms := decode[[]store.DormSummary](t, doJSON(t, r, http.MethodGet, "/api/dorms", nil))
	require.Len(t, dorms, 1)
	assert.Equal(t, 2, dorms[0].Occupied)
	assert.Zero(t, dorms[0].Remaining)

	rooms := decode[[]roomResponse](t, doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/dorms/%d/rooms", dorms[0].ID), nil))
	require.Len(t, rooms, 2)
	assert.Equal(t, 1, rooms[0].Number)
	assert.Equal(t, 1, rooms[0].Occupied)

	audit := decode[[]model.Assignment](t, doJSON(t, r, http.MethodGet, "/api/assignments?pass_id="+result.PassID, nil))
	assert.Len(t, audit, 2)

	assigned := decode[[]model.Person](t, doJSON(t, r, http.MethodGet, "/api/people?state=assigned", nil))
	assert.Len(t, assigned, 2)

	w = doJSON(t, r, http.MethodPost, "/api/assign", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[assign.Result](t, w).AssignedCount)

	t.Run("release frees the bed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/people/%d/release", ids[0]), nil)
		require.Equal(t, http.StatusOK, w.Code)
		p := decode[model.Person](t, w)
		assert.Equal(t, model.StateWaiting, p.State)
		assert.Nil(t, p.RoomID)

		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/people/%d/release", ids[0]), nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		// The furthest person gets the freed bed back.
		result := decode[assign.Result](t, doJSON(t, r, http.MethodPost, "/api/assign", nil))
		require.Len(t, result.Assignments, 1)
		assert.Equal(t, ids[0], result.Assignments[0].PersonID)
	})

	t.Run("lookup and delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/people/999", nil).Code)
		assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/people/abc", nil).Code)
		assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/people?state=gone", nil).Code)

		assert.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/people/%d", ids[1]), nil).Code)
		assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/people/%d", ids[1]), nil).Code)

		w := doJSON(t, r, http.MethodDelete, "/api/people", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":2}`, w.Body.String())

		people := decode[[]model.Person](t, doJSON(t, r, http.MethodGet, "/api/people", nil))
		assert.Empty(t, people)
	})
}

type stubAssigner struct {
	err error
}

func (s stubAssigner) RunPass(context.Context) (assign.Result, error) {
	return assign.Result{}, s.err
}

func TestAssign_ErrorStatuses(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"storage unavailable", fmt.Errorf("apply: %w: %w", store.ErrStorageUnavailable, errors.New("locked")), http.StatusServiceUnavailable},
		{"stale snapshot", fmt.Errorf("apply assignments: %w", store.ErrStaleSnapshot), http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(nil, stubAssigner{err: tc.err}, nil, zaptest.NewLogger(t))
			r := gin.New()
			r.POST("/api/assign", h.Assign)

			w := doJSON(t, r, http.MethodPost, "/api/assign", nil)
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.err.Error()), w.Body.String())
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, config.SeedConfig{Dorms: []string{"Dorm A"}, RoomsPerDorm: 1, RoomCapacity: 1})

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	doJSON(t, r, http.MethodPost, "/api/assign", nil)
	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dormd_assignment_passes_total{outcome="noop"} 1`)
}
