// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
	"github.com/rmvrefund/rmv-refund/internal/config"
	"github.com/rmvrefund/rmv-refund/internal/observability"
)

type contextKey string

// configKey stores the loaded *config.Config in the command context.
const configKey contextKey = "config"

// userConfigDir is searched after the working directory.
const userConfigDir = "~/.config/rmv-refund"

// NewRootCommand builds a fresh command tree. Each call returns an
// independent instance so flags never leak between executions.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rmv-refund",
		Short:         "Files RMV 10-Minuten-Garantie refund claims by driving Chrome through the claim form.",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "rmv-refund"})
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "rmv-refund"})
				return err
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting rmv-refund", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is rmv_config.{yaml,yml,json,toml,ini} in . or "+userConfigDir+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides logger.level")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newClaimCmd())
	rootCmd.AddCommand(newRoutesCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx and reports a failure on stderr.
// The returned error feeds ExitCode.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err with the hint for its kind.
func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		if !schemas.IsKind(err, schemas.KindExtraction) {
			fmt.Fprintln(w, "Interrupted, nothing more was sent to the claim form.")
			return
		}
		fmt.Fprintln(w, "Interrupted after the claim form was submitted.")
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	fmt.Fprintln(w, schemas.HintFor(err))
}

// initializeConfig reads the config file into v and binds environment and
// flag overrides. Having no config file at all is not an error here;
// validation reports what is missing.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "", err)
		}
		cfgFile = expanded
	} else {
		dirs := []string{"."}
		if dir, err := homedir.Expand(userConfigDir); err == nil {
			dirs = append(dirs, dir)
		}
		cfgFile = config.FindFile(dirs)
	}

	config.BindEnv(v)

	if cfgFile != "" {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "", err)
		}
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		v.Set("logger.level", level)
	}
	return nil
}

// getConfigFromContext returns the configuration loaded by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
