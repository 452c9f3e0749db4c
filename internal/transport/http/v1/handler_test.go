package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/hub"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	store "github.com/ivandudin29/tg-notes-bot/internal/repository"
	"github.com/ivandudin29/tg-notes-bot/internal/service"
	"github.com/ivandudin29/tg-notes-bot/internal/session"
	"github.com/ivandudin29/tg-notes-bot/internal/workflow"
	"github.com/ivandudin29/tg-notes-bot/tests/helpers"
)

type fixedCount struct {
	connections, users int
}

func (n fixedCount) ConnectionCount() int { return n.connections }
func (n fixedCount) UserCount() int       { return n.users }

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	text, err := render.NewLocalizer("en", time.UTC)
	require.NoError(t, err)
	engine := workflow.New(db, session.NewMemoryStore(0), workflow.WithLocalizer(text))
	svc := service.New(db, engine, service.WithLocalizer(text))
	return NewHandler(svc, fixedCount{connections: 2, users: 1}), db
}

func postUpdate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/updates", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.PostUpdate(c))
	return rec
}

func TestPostUpdateValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"user_id":`},
		{"no user", `{"text":"hi"}`},
		{"no text or action", `{"user_id":"u1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postUpdate(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestPostUpdateRunsWorkflow(t *testing.T) {
	h, db := newTestHandler(t)

	rec := postUpdate(t, h, `{"user_id":"u1","action":"new_project"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply domain.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, domain.OutcomePrompt, reply.Outcome)
	assert.Equal(t, "Enter the project name:", reply.Text)

	postUpdate(t, h, `{"user_id":"u1","text":"Garden"}`)
	rec = postUpdate(t, h, `{"user_id":"u1","text":"-"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, domain.OutcomeCompleted, reply.Outcome)

	projects, err := db.ListProjects(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Garden", projects[0].Name)
}

func TestListProjects(t *testing.T) {
	h, db := newTestHandler(t)
	_, err := db.CreateProject(context.Background(), "u1", "home", nil)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("u1")

	require.NoError(t, h.ListProjects(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Projects []domain.Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "home", resp.Projects[0].Name)
	assert.Equal(t, "u1", resp.Projects[0].OwnerID)
}

func TestListProjectsEmptyIsArray(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("user_id")
	c.SetParamValues("nobody")

	require.NoError(t, h.ListProjects(c))
	assert.JSONEq(t, `{"projects":[]}`, rec.Body.String())
}

func TestListProjectTasks(t *testing.T) {
	h, db := newTestHandler(t)
	ctx := context.Background()
	pid, err := db.CreateProject(ctx, "u1", "home", nil)
	require.NoError(t, err)
	_, err = db.CreateTask(ctx, pid, "a", nil, time.Now().Add(time.Hour), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  string
		project string
		code    int
	}{
		{"owner", "u1", strconv.FormatInt(pid, 10), http.StatusOK},
		{"foreign owner", "u2", strconv.FormatInt(pid, 10), http.StatusNotFound},
		{"bad id", "u1", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			c.SetParamNames("user_id", "project_id")
			c.SetParamValues(tt.userID, tt.project)

			require.NoError(t, h.ListProjectTasks(c))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, h.Health(c))
	assert.JSONEq(t, `{"status":"healthy","version":"0.1.0","connections":2,"users":1}`, rec.Body.String())
}

func TestHealthCountsHubUsers(t *testing.T) {
	base, _ := newTestHandler(t)
	h := NewHandler(base.service, hub.NewHub())

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, h.Health(c))
	assert.JSONEq(t, `{"status":"healthy","version":"0.1.0","connections":0,"users":0}`, rec.Body.String())
}

func TestRoutesAreRegistered(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e)

	for _, path := range []string{"/", "/health", "/v1/users/u1/projects"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
