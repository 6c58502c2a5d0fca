package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sisudaka/lib/serviceutil"
	"sisudaka/lib/telemetry"
	"sisudaka/services/checkin"
	"time"

	"github.com/spf13/cobra"
)

const (
	Version  = "0.2.0"
	Homepage = "https://github.com/shniubobo/sisudaka"
)

var banner = fmt.Sprintf(`sisudaka v%s, scheduled check-in questionnaire submitter

Disclaimer:
    This program is for learning and exchange only. Please check in by hand
    through WeCom and fill in truthful data. By continuing to use it you
    accept full responsibility for doing so. Otherwise press CTRL+C to exit
    now!

Homepage: %s
Please report bugs with the complete log output at %s/issues.
`, Version, Homepage, Homepage)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the check-in on its schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		fmt.Println(banner)

		enabled, err := telemetry.SetupFromEnv(ctx, "sisudaka")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		if enabled {
			telemetry.InstrumentPerfStats(ctx, time.Minute)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := telemetry.Shutdown(ctx)
			if err != nil {
				slog.Warn("failed to flush telemetry", "err", err)
			}
		}()

		app := newApp()
		defer app.Close()

		scheduler, err := checkin.NewScheduler(app.service, app.clock, app.config.Schedule)
		if err != nil {
			serviceutil.Fatal("failed to create scheduler", err)
		}
		err = scheduler.Start(ctx)
		if err != nil {
			serviceutil.Fatal("failed to start scheduler", err)
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	},
}
