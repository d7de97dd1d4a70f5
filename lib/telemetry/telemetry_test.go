package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	err = os.Chdir(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(prev)
	})
}

func TestSetupFromEnvMissingConfig(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := SetupFromEnv(context.Background(), "test:lib/telemetry")
	require.True(t, os.IsNotExist(err))
}

func TestSetupFromEnvMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "telemetry.json5"), []byte("{{{{"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	// a config that exists but cannot be parsed must not look like absence,
	// callers only tolerate the latter
	_, err = SetupFromEnv(context.Background(), "test:lib/telemetry")
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestShutdownWithoutProvider(t *testing.T) {
	require.NoError(t, Telemetry{}.Shutdown(context.Background()))
}
