package main

import (
	"context"
	"os"

	"steamharvest/cmd/steamharvest/commands"
	"steamharvest/lib/serviceutil"
	"steamharvest/lib/telemetry"
)

func main() {
	t, err := telemetry.SetupFromEnv(context.Background(), "steamharvest")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	telemetry.InitSlog(false)
	commands.ExecuteContext(context.Background())
}
