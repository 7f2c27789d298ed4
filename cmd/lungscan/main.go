// Package main is the entry point for LungScan.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Version metadata injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is returned by RunE functions that already reported their failure.
var errExit = errors.New("exit")

// run executes the lungscan CLI with the given args.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "lungscan: %v\n", err)
		}
		return 1
	}
	return 0
}

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	envFile    string
	modelPath  string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "lungscan",
		Short:         "Classify lung CT images with a local model",
		Long:          "LungScan opens a desktop window for classifying lung CT images.\nUse the predict command to classify images from the terminal.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: user config dir/lungscan/config.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", "Dotenv file with LUNGSCAN_* variables (default: .env)")
	flags.StringVar(&opts.modelPath, "model", "", "Model manifest; overrides config and environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newPredictCmd(opts, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}
