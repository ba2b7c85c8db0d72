package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/api/handlers"
	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/pagination"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Submit(ctx context.Context, req service.SubmitRequest) (<-chan domain.Event, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan domain.Event), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) List(ctx context.Context, taskType domain.TaskType, limit int, cursor string) (pagination.PageResult[*domain.Session], error) {
	args := m.Called(ctx, taskType, limit, cursor)
	return args.Get(0).(pagination.PageResult[*domain.Session]), args.Error(1)
}

func (m *MockSessionService) Messages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockSessionService) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type MockVideoCatalog struct {
	mock.Mock
}

func (m *MockVideoCatalog) List(ctx context.Context, chapter string) ([]*domain.Video, error) {
	args := m.Called(ctx, chapter)
	return args.Get(0).([]*domain.Video), args.Error(1)
}

func (m *MockVideoCatalog) ListChapters(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type routerFixture struct {
	generator *MockGenerator
	sessions  *MockSessionService
	videos    *MockVideoCatalog
	handler   http.Handler
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		generator: new(MockGenerator),
		sessions:  new(MockSessionService),
		videos:    new(MockVideoCatalog),
	}
	f.handler = NewRouter(RouterConfig{
		AskHandler:     handlers.NewAskHandler(f.generator),
		SessionHandler: handlers.NewSessionHandler(f.sessions),
		VideoHandler:   handlers.NewVideoHandler(f.videos),
	})
	return f
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture()

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]interface{}{"status": "ok"}, resp["data"])
}

func TestRouter_AskStreamsThroughMiddleware(t *testing.T) {
	f := newRouterFixture()

	ch := make(chan domain.Event, 2)
	ch <- domain.Event{Type: domain.EventToken, Token: "hi"}
	ch <- domain.Event{Type: domain.EventDone, Content: "hi", SessionID: "s-1", MessageID: "m-1"}
	close(ch)
	f.generator.On("Submit", mock.Anything, mock.Anything).Return((<-chan domain.Event)(ch), nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"query":"hello"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, w.Flushed)
	assert.Contains(t, w.Body.String(), "event: token\n")
	assert.Contains(t, w.Body.String(), "event: done\n")
}

func TestRouter_SessionRoutes(t *testing.T) {
	f := newRouterFixture()

	f.sessions.On("List", mock.Anything, domain.TaskType(""), 0, "").
		Return(pagination.PageResult[*domain.Session]{Items: []*domain.Session{}}, nil)
	f.sessions.On("Messages", mock.Anything, "s-1").Return([]*domain.Message{}, nil)
	f.sessions.On("Delete", mock.Anything, "s-1").Return(nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/sessions", http.StatusOK},
		{http.MethodGet, "/sessions/s-1/messages", http.StatusOK},
		{http.MethodDelete, "/sessions/s-1", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}

	f.sessions.AssertExpectations(t)
}

func TestRouter_VideoRoutes(t *testing.T) {
	f := newRouterFixture()

	f.videos.On("List", mock.Anything, "").Return([]*domain.Video{}, nil)
	f.videos.On("ListChapters", mock.Anything).Return([]string{"Chương 4"}, nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/videos", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chapters", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Chương 4")
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture()

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lectures", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
