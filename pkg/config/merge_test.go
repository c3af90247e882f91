package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ralph-build/orchestrator/pkg/store"
)

func TestApplySettingsPatchOverridesRecognisedFields(t *testing.T) {
	base := store.Settings{MaxIterations: 100, MaxRetriesPerTask: 3, BaseSleepTime: 2000, BackoffMultiplier: 2}
	merged, err := ApplySettingsPatch(base, []byte(`{"maxRetriesPerTask":5}`))
	require.NoError(t, err)
	require.Equal(t, 5, merged.MaxRetriesPerTask)
	require.Equal(t, 100, merged.MaxIterations)
}

func TestApplySettingsPatchRejectsUnknownKey(t *testing.T) {
	base := store.Settings{}
	_, err := ApplySettingsPatch(base, []byte(`{"bogusField":true}`))
	require.Error(t, err)
}
