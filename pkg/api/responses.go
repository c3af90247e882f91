package api

import "github.com/ralph-build/orchestrator/pkg/store"

// ProjectResponse is the wire shape for a Project (GET/POST /api/projects).
type ProjectResponse struct {
	ID             string     `json:"id"`
	RootPath       string     `json:"rootPath"`
	Plan           store.Plan `json:"plan"`
	Status         string     `json:"status"`
	Iteration      int        `json:"iteration"`
	UseHumanReview bool       `json:"useHumanReview"`
}

func toProjectResponse(p store.Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID,
		RootPath:       p.RootPath,
		Plan:           p.Plan,
		Status:         p.Status,
		Iteration:      p.Iteration,
		UseHumanReview: p.UseHumanReview,
	}
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
