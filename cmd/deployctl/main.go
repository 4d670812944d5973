package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/deployctl/deployctl/internal/utils"
	"github.com/deployctl/deployctl/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	envLogLevel = "DEPLOYCTL_LOG_LEVEL"
)

// logCloser owns the --log-file handle for the lifetime of the process
var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:     "deployctl",
	Short:   "Command line tool for Deno Deploy",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

// addGlobalFlags registers the flags every subcommand understands
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolP("verbose", "v", false, "Enable debug logging")
	fs.String("log-file", "", "Also write logs to this file")
	fs.String("api", "", "Deploy API endpoint (default "+defaultAPI+")")
}

func setupLogging(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if env := os.Getenv(envLogLevel); env != "" {
		parsed, err := utils.ParseLevel(env)
		if err != nil {
			return err
		}
		level = parsed
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	logFile, _ := cmd.Flags().GetString("log-file")
	logger, closer, err := utils.NewLogger(utils.LogOptions{
		Level:   level,
		Output:  os.Stderr,
		LogFile: logFile,
	})
	if err != nil {
		return err
	}

	logCloser = closer
	slog.SetDefault(logger)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
