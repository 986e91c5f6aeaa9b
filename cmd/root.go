package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	outputJSON    bool
	outputCompact bool
	verbose       bool
	cfg           Config
	app           *App
)

var rootCmd = &cobra.Command{
	Use:   "bookmybox",
	Short: "BookMyBox CLI for sports box listings and bookings",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputJSON && outputCompact {
			return fmt.Errorf("choose either --json or --compact")
		}
		logger := newLogger(verbose)
		slog.SetDefault(logger)

		built, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		app = built
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(boxesCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(bookingsCmd())
	rootCmd.AddCommand(favouritesCmd())
	rootCmd.AddCommand(dashboardCmd())

	err := rootCmd.Execute()
	if app != nil {
		if closeErr := app.Close(); closeErr != nil {
			slog.Warn("close state db", "error", closeErr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output JSON")
	rootCmd.PersistentFlags().BoolVar(&outputCompact, "compact", false, "Output compact text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and state changes to stderr")
}

func initConfig() {
	loaded, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring config: %v\n", err)
		loaded = Config{}
		applyEnv(&loaded)
	}
	cfg = loaded
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
