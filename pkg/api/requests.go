package api

import (
	"encoding/json"

	"github.com/ralph-build/orchestrator/pkg/store"
)

// CreateProjectRequest is the HTTP request body for POST /api/projects.
type CreateProjectRequest struct {
	Name string     `json:"name"`
	Path string     `json:"path,omitempty"`
	PRD  *store.Plan `json:"prd,omitempty"`
}

// GeneratePRDRequest is the HTTP request body for
// POST /api/projects/:id/generate-prd.
type GeneratePRDRequest struct {
	Prompt string `json:"prompt"`
}

// UpdatePRDRequest is the HTTP request body for
// POST /api/projects/:id/update-prd.
type UpdatePRDRequest struct {
	PRD store.Plan `json:"prd"`
}

// UpdateSettingsRequest is the HTTP request body for
// POST /api/projects/:id/update-settings — a per-project settings patch.
// A closed key set, applied the same way as the global settings patch
// (pkg/config.ApplySettingsPatch), scoped to the one field exposed at
// per-project granularity.
type UpdateSettingsRequest struct {
	Updates json.RawMessage `json:"updates"`
}
