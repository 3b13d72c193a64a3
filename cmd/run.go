// -- cmd/run.go --
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/internal/automator"
	"github.com/pilotweb/pilot-cli/internal/config"
	"github.com/pilotweb/pilot-cli/internal/observability"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var inline []string

	runCmd := &cobra.Command{
		Use:   "run [instruction-file]",
		Short: "Runs a sequence of browser instructions",
		Long: `Runs the instructions from a file (or from -e flags) against a browser.
Each line is one instruction. Lines starting with '#' are comments, and
DEFINE_FUNCTION <name> ... END_FUNCTION blocks can be replayed with CALL <name>.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config file and env.
			if err := viper.BindPFlag("automation.retry_attempts", cmd.Flags().Lookup("retries")); err != nil {
				return err
			}
			if err := viper.BindPFlag("automation.action_delay", cmd.Flags().Lookup("delay")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("automation.close_browser", cmd.Flags().Lookup("close-browser")); err != nil {
				return err
			}
			// Bind the remaining flags under their own names.
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if len(args) == 0 && len(inline) == 0 {
				return fmt.Errorf("provide an instruction file or at least one -e instruction")
			}

			if cmd.Flags().Changed("keep-open") {
				keepOpen, _ := cmd.Flags().GetBool("keep-open")
				viper.Set("automation.close_browser", !keepOpen)
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			auto, err := automator.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cfg.Automation.CloseBrowser {
					auto.Close()
				}
			}()

			var ok bool
			if len(args) == 1 {
				ok, err = auto.RunFile(ctx, args[0])
				if err != nil {
					return err
				}
			} else {
				ok = auto.Run(ctx, inline)
			}

			if output := viper.GetString("output"); output != "" {
				if err := writeSummary(auto.LastSummary(), output); err != nil {
					logger.Error("Could not write run summary", zap.Error(err))
				}
			}

			if !ok {
				return fmt.Errorf("run finished with failed instructions")
			}
			return nil
		},
	}

	runCmd.Flags().StringArrayVarP(&inline, "exec", "e", nil, "Inline instruction (repeatable). Used instead of a file.")
	runCmd.Flags().StringP("output", "o", "", "Write a JSON run summary to this path.")
	runCmd.Flags().IntP("retries", "r", 0, "Execution attempts per instruction. 1 means fail-fast. (Overrides config/env)")
	runCmd.Flags().Duration("delay", 0, "Delay between instructions. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	runCmd.Flags().Bool("close-browser", true, "Close the browser when the run ends. (Overrides config/env)")
	runCmd.Flags().Bool("keep-open", false, "Keep the browser open after the run (shorthand for --close-browser=false).")

	return runCmd
}

// writeSummary marshals the run summary as JSON to path.
func writeSummary(summary automator.Summary, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
