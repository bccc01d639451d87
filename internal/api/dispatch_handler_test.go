package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/dispatch"
	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/task"
)

type mockChain struct {
	mock.Mock
}

func (m *mockChain) Run(ctx context.Context, queue task.Queue, force bool) (dispatch.Result, error) {
	args := m.Called(ctx, queue, force)
	return args.Get(0).(dispatch.Result), args.Error(1)
}

func (m *mockChain) Kick(ctx context.Context) ([]dispatch.Result, error) {
	args := m.Called(ctx)
	results, _ := args.Get(0).([]dispatch.Result)
	return results, args.Error(1)
}

type stubResetter struct {
	olderThan time.Duration
	n         int64
	err       error
}

func (s *stubResetter) ResetStuck(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.n, s.err
}

func newDispatchRouter(chain ChainRunner, resetter StuckResetter) chi.Router {
	h := NewDispatchHandler(chain, resetter, 10*time.Minute, nil)
	r := chi.NewRouter()
	r.Post("/dispatch/trigger", h.Trigger)
	r.Post("/dispatch/kick", h.Kick)
	r.Post("/dispatch/reset-stuck", h.ResetStuck)
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestDispatchHandler_Trigger(t *testing.T) {
	chain := &mockChain{}
	chain.On("Run", mock.Anything, task.QueueTopics, true).Return(dispatch.Result{
		Status:   dispatch.StatusProcessed,
		TaskID:   7,
		TaskType: task.TypeCloseTopic,
		Outcome:  executor.KindSkipped,
	}, nil).Once()

	rec := serve(newDispatchRouter(chain, &stubResetter{}), http.MethodPost, "/dispatch/trigger?queue=topics&force=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dispatch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, dispatch.StatusProcessed, res.Status)
	assert.Equal(t, int64(7), res.TaskID)
	assert.Equal(t, executor.KindSkipped, res.Outcome)
	chain.AssertExpectations(t)
}

func TestDispatchHandler_TriggerReportsWait(t *testing.T) {
	chain := &mockChain{}
	chain.On("Run", mock.Anything, task.Queue(""), false).
		Return(dispatch.Result{Status: dispatch.StatusRateLimited, WaitSeconds: 300}, nil).Once()

	rec := serve(newDispatchRouter(chain, &stubResetter{}), http.MethodPost, "/dispatch/trigger")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"rate_limited","wait_seconds":300}`, rec.Body.String())
}

func TestDispatchHandler_TriggerBadInput(t *testing.T) {
	chain := &mockChain{}
	r := newDispatchRouter(chain, &stubResetter{})

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/dispatch/trigger?queue=everything").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/dispatch/trigger?force=maybe").Code)
	chain.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchHandler_TriggerStoreFailure(t *testing.T) {
	chain := &mockChain{}
	chain.On("Run", mock.Anything, task.QueueChats, false).
		Return(dispatch.Result{}, errors.New("dial tcp 10.0.0.5:5432: connection refused")).Once()

	rec := serve(newDispatchRouter(chain, &stubResetter{}), http.MethodPost, "/dispatch/trigger?queue=chats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Dispatch failed", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestDispatchHandler_Kick(t *testing.T) {
	chain := &mockChain{}
	chain.On("Kick", mock.Anything).Return(nil, nil).Once()

	rec := serve(newDispatchRouter(chain, &stubResetter{}), http.MethodPost, "/dispatch/kick")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())

	chain.On("Kick", mock.Anything).Return([]dispatch.Result{
		{Status: dispatch.StatusIdle},
		{Status: dispatch.StatusWaiting, WaitSeconds: 40},
	}, nil).Once()

	rec = serve(newDispatchRouter(chain, &stubResetter{}), http.MethodPost, "/dispatch/kick")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp KickResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	chain.AssertExpectations(t)
}

func TestDispatchHandler_ResetStuck(t *testing.T) {
	resetter := &stubResetter{n: 3}
	r := newDispatchRouter(&mockChain{}, resetter)

	rec := serve(r, http.MethodPost, "/dispatch/reset-stuck")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset":3}`, rec.Body.String())
	assert.Equal(t, 10*time.Minute, resetter.olderThan)

	rec = serve(r, http.MethodPost, "/dispatch/reset-stuck?older_than=60")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Minute, resetter.olderThan)

	rec = serve(r, http.MethodPost, "/dispatch/reset-stuck?older_than=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resetter.olderThan = 0
	for _, tooYoung := range []string{"0", "59"} {
		rec = serve(r, http.MethodPost, "/dispatch/reset-stuck?older_than="+tooYoung)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tooYoung)
	}
	assert.Zero(t, resetter.olderThan, "nothing may be reset with a short age")
}
