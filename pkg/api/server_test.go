package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/registry"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/vcsgate"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	reg := registry.New(func(id string) registry.Pipeline { return nil })
	bc := broadcast.New(time.Second)

	s := NewServer(st, reg, bc, nil, nil, func(name string) string {
		return t.TempDir() + "/" + name
	})
	return s, st
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListProjects(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/projects", CreateProjectRequest{Name: "widget"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var projects []ProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	require.Equal(t, "widget", projects[0].ID)
	require.Equal(t, "created", projects[0].Status)
}

func TestCreateProjectRequiresName(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/projects", CreateProjectRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartUnknownProjectReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/projects/nope/start", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProjectSettingsRejectsUnknownKey(t *testing.T) {
	s, st := newTestServer(t)
	require.NoError(t, st.SaveProject(store.Project{ID: "p1", RootPath: "/tmp/p1"}))

	rec := doJSON(t, s, http.MethodPost, "/api/projects/p1/update-settings",
		map[string]interface{}{"updates": map[string]interface{}{"bogus": true}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProjectSettingsAppliesUseHumanReview(t *testing.T) {
	s, st := newTestServer(t)
	require.NoError(t, st.SaveProject(store.Project{ID: "p1", RootPath: "/tmp/p1"}))

	rec := doJSON(t, s, http.MethodPost, "/api/projects/p1/update-settings",
		map[string]interface{}{"updates": map[string]interface{}{"useHumanReview": true}})
	require.Equal(t, http.StatusOK, rec.Code)

	prj, ok := st.GetProject("p1")
	require.True(t, ok)
	require.True(t, prj.UseHumanReview)
}

func TestLessonsListAndDelete(t *testing.T) {
	s, st := newTestServer(t)
	require.NoError(t, st.SaveLesson(store.Lesson{Project: "p1", Timestamp: "t1", Error: "boom"}))

	rec := doJSON(t, s, http.MethodGet, "/api/lessons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lessons []store.Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lessons))
	require.Len(t, lessons, 1)

	rec = doJSON(t, s, http.MethodDelete, "/api/lessons/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, st.GetLessons())
}

func TestSettingsGetAndUpdate(t *testing.T) {
	s, st := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	newSettings := st.GetSettings()
	newSettings.MaxIterations = 5
	rec = doJSON(t, s, http.MethodPost, "/api/settings", newSettings)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, st.GetSettings().MaxIterations)
}

func TestInitProjectWritesGitignoreExcludingBookkeepingFiles(t *testing.T) {
	requireGit(t)

	root := t.TempDir()
	for _, args := range [][]string{
		{"-C", root, "init"},
		{"-C", root, "config", "user.email", "test@example.com"},
		{"-C", root, "config", "user.name", "test"},
	} {
		out, err := exec.Command("git", args...).CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	s, st := newTestServer(t)
	require.NoError(t, st.SaveProject(store.Project{ID: "p1", RootPath: root}))

	rec := doJSON(t, s, http.MethodPost, "/api/projects/p1/init", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	gitignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	require.Equal(t, gitignoreContents, string(gitignore))

	require.NoError(t, os.WriteFile(filepath.Join(root, "agents.md"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".ralph", "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ralph", "logs", "x.md"), []byte("log"), 0o644))

	changed, err := vcsgate.New(root).Status(context.Background())
	require.NoError(t, err)
	require.Empty(t, changed, "agents.md and .ralph/** must be gitignored, not merely uncommitted")
}

func TestWSHandlerWithoutUpgradeHeadersFails(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	err := s.wsHandler(c)
	require.Error(t, err)
}
