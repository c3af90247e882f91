package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dario.cat/mergo"

	"github.com/ralph-build/orchestrator/pkg/store"
)

// ApplySettingsPatch decodes patch (a JSON object) strictly against
// store.Settings's recognised field set — the override set is closed,
// unknown keys are rejected — then merges it over base, patch fields
// taking precedence: decode into the same shape being merged into, then
// mergo.Merge with override.
func ApplySettingsPatch(base store.Settings, patch json.RawMessage) (store.Settings, error) {
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()

	var partial store.Settings
	if err := dec.Decode(&partial); err != nil {
		return store.Settings{}, &ValidationError{Field: "settings", Err: fmt.Errorf("%w: %v", ErrUnknownSettingsKey, err)}
	}

	merged := base
	if err := mergo.Merge(&merged, partial, mergo.WithOverride); err != nil {
		return store.Settings{}, fmt.Errorf("merging settings patch: %w", err)
	}
	return merged, nil
}

// projectSettingsPatch is the closed, recognised per-project override
// set: useHumanReview is the only field settable this way; everything
// else about a Project is managed by its own endpoints.
type projectSettingsPatch struct {
	UseHumanReview *bool `json:"useHumanReview"`
}

// ApplyProjectSettingsPatch decodes patch strictly against the
// per-project recognised field set and applies it to proj.
func ApplyProjectSettingsPatch(proj store.Project, patch json.RawMessage) (store.Project, error) {
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()

	var partial projectSettingsPatch
	if err := dec.Decode(&partial); err != nil {
		return store.Project{}, &ValidationError{Field: "updates", Err: fmt.Errorf("%w: %v", ErrUnknownSettingsKey, err)}
	}

	if partial.UseHumanReview != nil {
		proj.UseHumanReview = *partial.UseHumanReview
	}
	return proj, nil
}
