package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frartenzo/webeep-sync/internal/app"
	"github.com/frartenzo/webeep-sync/internal/config"
	"github.com/frartenzo/webeep-sync/internal/utils"
	"github.com/frartenzo/webeep-sync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "webeep",
	Short:         "WeBeep Sync CLI",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "settings file")
	rootCmd.PersistentFlags().StringP("datadir", "d", config.DefaultDataDir, "data directory")
}

func main() {
	logFile := filepath.Join(config.DefaultDataDir, "logs", "client.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Printf("%s: %s\n", red.Render("ERROR"), err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(config.DefaultDataDir)
		viper.SetConfigName("settings")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read %q: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("config_path", cmd.Flags().Lookup("config"))

	viper.SetEnvPrefix("WEBEEP")
	viper.AutomaticEnv()
	return nil
}

// newApp builds the composition root with an interactive login provider.
func newApp() (*app.App, error) {
	var a *app.App
	provider := newLoginProvider(func() string {
		return a.Store.Get().ServerURL
	})

	a, err := app.New(&app.Options{
		ConfigPath: viper.GetString("config_path"),
		DataDir:    viper.GetString("data_dir"),
		Auth:       provider,
	})
	return a, err
}

// newHeadlessApp builds the composition root for daemon mode, where no
// interactive login is possible.
func newHeadlessApp() (*app.App, error) {
	return app.New(&app.Options{
		ConfigPath: viper.GetString("config_path"),
		DataDir:    viper.GetString("data_dir"),
		Auth:       headlessProvider{},
	})
}
