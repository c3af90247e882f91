package api

import (
	"context"
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ralph-build/orchestrator/pkg/config"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/registry"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/vcsgate"
	"github.com/ralph-build/orchestrator/pkg/workspace"
)

// gitignoreContents is written into every freshly-initialised workspace
// so the Pipeline's own bookkeeping files never enter VCS tracking.
const gitignoreContents = "node_modules/\n.ralph/\nagents.md\nprogress.txt\n"

// listProjectsHandler handles GET /api/projects.
func (s *Server) listProjectsHandler(c *echo.Context) error {
	projects := s.store.GetProjects()
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	return c.JSON(http.StatusOK, out)
}

// createProjectHandler handles POST /api/projects.
func (s *Server) createProjectHandler(c *echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	prj, err := s.createProject(req.Name, req.Path, req.PRD)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, toProjectResponse(prj))
}

// createProject is the shared path between the HTTP handler and the chat
// bridge's /new command (chatbridge.ProjectCreator).
func (s *Server) createProject(name, path string, prd *store.Plan) (store.Project, error) {
	root := path
	if root == "" {
		root = s.projectRootFn(name)
	}
	p := store.Plan{}
	if prd != nil {
		p = *prd
	}

	prj := store.Project{
		ID:       name,
		RootPath: root,
		Plan:     p,
		Status:   "created",
	}
	if err := s.store.SaveProject(prj); err != nil {
		return store.Project{}, err
	}
	return prj, nil
}

// CreateProject implements chatbridge.ProjectCreator.
func (s *Server) CreateProject(name, prompt string) (string, error) {
	prj, err := s.createProject(name, "", nil)
	if err != nil {
		return "", err
	}
	if prompt != "" {
		if _, err := s.generatePRD(context.Background(), prj.ID, prompt); err != nil {
			return prj.ID, err
		}
	}
	return prj.ID, nil
}

// startProjectHandler handles POST /api/projects/:id/start.
func (s *Server) startProjectHandler(c *echo.Context) error {
	id := c.Param("id")
	prj, ok := s.store.GetProject(id)
	if !ok {
		return mapServiceError(&registry.ErrProjectNotFound{ProjectID: id})
	}
	prj.Status = "running"
	if err := s.store.SaveProject(prj); err != nil {
		return mapServiceError(err)
	}
	s.registry.Start(id)
	return c.JSON(http.StatusOK, MessageResponse{Message: "started"})
}

// stopProjectHandler handles POST /api/projects/:id/stop.
func (s *Server) stopProjectHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.registry.Stop(id); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "stop requested"})
}

// initProjectHandler handles POST /api/projects/:id/init — materialises
// the workspace directory, git-inits it, and makes the initial commit.
func (s *Server) initProjectHandler(c *echo.Context) error {
	id := c.Param("id")
	prj, ok := s.store.GetProject(id)
	if !ok {
		return mapServiceError(&registry.ErrProjectNotFound{ProjectID: id})
	}

	ws, err := workspace.New(prj.RootPath)
	if err != nil {
		return mapServiceError(err)
	}
	if err := ws.MkdirAll("."); err != nil {
		return mapServiceError(err)
	}

	ctx := c.Request().Context()
	vcs := vcsgate.New(prj.RootPath)
	if err := vcs.Init(ctx); err != nil {
		return mapServiceError(err)
	}

	data, err := json.MarshalIndent(prj.Plan, "", "  ")
	if err != nil {
		return mapServiceError(err)
	}
	if err := ws.WriteFile("plans/prd.json", data); err != nil {
		return mapServiceError(err)
	}
	if err := ws.WriteFile(".gitignore", []byte(gitignoreContents)); err != nil {
		return mapServiceError(err)
	}

	if err := vcs.AddAndCommit(ctx, "Initial commit"); err != nil {
		return mapServiceError(err)
	}

	prj.Status = "initialized"
	if err := s.store.SaveProject(prj); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toProjectResponse(prj))
}

// generatePRDHandler handles POST /api/projects/:id/generate-prd.
func (s *Server) generatePRDHandler(c *echo.Context) error {
	id := c.Param("id")
	var req GeneratePRDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pl, err := s.generatePRD(c.Request().Context(), id, req.Prompt)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pl)
}

// generatePRD synchronously asks the LLM to produce a Plan for prompt and
// persists it as the project's Plan.
func (s *Server) generatePRD(ctx context.Context, projectID, prompt string) (store.Plan, error) {
	resp, err := s.llm.Call(ctx, llmclient.RolePRD, prompt)
	if err != nil {
		return store.Plan{}, err
	}

	var pl store.Plan
	if err := llmclient.ExtractJSON(resp, &pl); err != nil {
		return store.Plan{}, err
	}

	if err := s.store.UpdatePlan(projectID, pl); err != nil {
		return store.Plan{}, err
	}
	return pl, nil
}

// updatePRDHandler handles POST /api/projects/:id/update-prd.
func (s *Server) updatePRDHandler(c *echo.Context) error {
	id := c.Param("id")
	var req UpdatePRDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.store.UpdatePlan(id, req.PRD); err != nil {
		return mapServiceError(err)
	}

	prj, ok := s.store.GetProject(id)
	if ok {
		ws, err := workspace.New(prj.RootPath)
		if err == nil {
			if data, err := json.MarshalIndent(req.PRD, "", "  "); err == nil {
				_ = ws.WriteFile("plans/prd.json", data)
			}
		}
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "updated"})
}

// updateProjectSettingsHandler handles
// POST /api/projects/:id/update-settings.
func (s *Server) updateProjectSettingsHandler(c *echo.Context) error {
	id := c.Param("id")
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	prj, ok := s.store.GetProject(id)
	if !ok {
		return mapServiceError(&registry.ErrProjectNotFound{ProjectID: id})
	}

	merged, err := config.ApplyProjectSettingsPatch(prj, req.Updates)
	if err != nil {
		return mapServiceError(err)
	}
	if err := s.store.SaveProject(merged); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toProjectResponse(merged))
}
