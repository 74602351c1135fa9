package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
	"github.com/xkilldash9x/franz-cli/internal/journal"
	"github.com/xkilldash9x/franz-cli/internal/loop"
	"github.com/xkilldash9x/franz-cli/internal/model"
	"github.com/xkilldash9x/franz-cli/internal/observability"
	"github.com/xkilldash9x/franz-cli/internal/surface"
)

// newRunCmd creates and configures the `run` command, which drives the
// perception-decide-act loop until the model concludes or a fatal error occurs.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the perception-decide-act loop",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so CLI values override the config
			// file and environment with the right precedence.
			if err := viper.BindPFlag("surface.start_url", cmd.Flags().Lookup("start-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("surface.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("model.provider", cmd.Flags().Lookup("provider")); err != nil {
				return err
			}
			if err := viper.BindPFlag("model.model", cmd.Flags().Lookup("model")); err != nil {
				return err
			}
			if err := viper.BindPFlag("loop.dump_dir", cmd.Flags().Lookup("dump-dir")); err != nil {
				return err
			}
			return viper.BindPFlag("journal.type", cmd.Flags().Lookup("journal"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := config.Get()
			// Re-unmarshal so the flags bound in PreRunE take effect.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runLoop(ctx, cfg, logger)
		},
	}

	runCmd.Flags().String("start-url", "", "URL the surface session opens as its desktop")
	runCmd.Flags().Bool("headless", true, "run the surface browser headless")
	runCmd.Flags().String("provider", "", "inference provider (gemini or openai)")
	runCmd.Flags().String("model", "", "model name for the inference provider")
	runCmd.Flags().String("dump-dir", "", "directory for per-step frame dumps (empty disables)")
	runCmd.Flags().String("journal", "", "cycle journal backend (none, memory or postgres)")

	return runCmd
}

// runLoop wires the collaborators together and runs the loop to termination.
func runLoop(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := model.New(ctx, cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("Failed to close inference client", zap.Error(cerr))
		}
	}()

	session, err := surface.NewSession(ctx, cfg.Surface, logger)
	if err != nil {
		return fmt.Errorf("failed to open surface session: %w", err)
	}
	defer func() {
		// Close with a background context: the run context may already be
		// cancelled when we get here.
		if cerr := session.Close(context.Background()); cerr != nil {
			logger.Warn("Failed to close surface session", zap.Error(cerr))
		}
	}()

	recorder, err := journal.New(ctx, cfg.Journal, logger)
	if err != nil {
		return fmt.Errorf("failed to create cycle journal: %w", err)
	}
	defer func() {
		if cerr := recorder.Close(context.Background()); cerr != nil {
			logger.Warn("Failed to close cycle journal", zap.Error(cerr))
		}
	}()

	eng := engine.New(logger, cfg.Loop.MaxConsecutiveObservations)

	runner := loop.New(loop.Deps{
		Frames:   session,
		Client:   client,
		Executor: session,
		Engine:   eng,
		Journal:  recorder,
		Logger:   logger,
	}, loop.Config{
		RetryBudget:      cfg.Loop.RetryBudget,
		TransportRetries: cfg.Loop.TransportRetries,
		TransportBackoff: cfg.Loop.TransportBackoff,
		CycleInterval:    cfg.Loop.CycleInterval,
		SettleDelay:      cfg.Loop.SettleDelay,
		InitialStory:     cfg.Loop.InitialStory,
		DumpDir:          cfg.Loop.DumpDir,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("Loop terminated",
		zap.String("cause", string(result.Cause)),
		zap.Int("steps", result.Steps),
	)
	fmt.Fprintf(os.Stdout, "\n%s\n\nFranz rests. (%s after %d steps)\n", result.Story, result.Cause, result.Steps)
	return nil
}
