package cmds

import (
	"context"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// Exit codes reported to the process supervisor
const (
	ExitErrored = 1
	ExitConfig  = 2
)

var tracer = otel.Tracer("github.com/tggeco/challenge-api/worker/cmds")

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Background worker for the challenge API",
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
