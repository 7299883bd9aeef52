// Command fruit-grader weighs fruit on a load cell, grades each piece by
// weight and announces and reports the grade.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sweeney/fruit-grader/internal/config"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath
	daemonAddr = "http://localhost"
)

var (
	gDaemon       = "Daemon:"
	gOperator     = "Operator:"
	commandGroups = []string{
		gDaemon,
		gOperator,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		})
	}
	return nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fruit-grader",
		Short: "fruit-grader weighs and grades fruit on a load cell",
		Long: `fruit-grader weighs fruit on an HX711 load cell, classifies each stable
reading into a grade band, plays the grade's sound and reports it upstream.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "config file path")
	globalFlags.StringVar(&daemonAddr, "addr", daemonAddr, "base URL of a running daemon")

	for _, g := range commandGroups {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewValidateCommand(),
		NewReadCommand(),
		NewStatusCommand(),
		NewTareCommand(),
		NewCalibrateCommand(),
	)
	return cmd
}
