package di

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tangent-backend/internal/config"
)

func TestInitializeApp_SupportsRuntimeRetuning(t *testing.T) {
	app, err := InitializeApp(config.Default())
	require.NoError(t, err)
	require.NotNil(t, app.Orchestrator)

	next := config.Default()
	next.Cascade.MaxParallel = 1
	app.ApplyConfig(next)
}
