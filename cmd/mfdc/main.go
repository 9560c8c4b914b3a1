// mfdc scores leadership-type questionnaires and summarises workshop
// sessions.
//
// Usage:
//
//	mfdc shuffle --session CODE [--db PATH]
//	mfdc score --answers FILE
//	mfdc aggregate --responses FILE | --session CODE --db PATH
//	mfdc session create --code CODE --title TITLE --db PATH
//	mfdc submit --session CODE --answers FILE --db PATH [--name NAME] [--email EMAIL]
//	mfdc participants --session CODE --by type|axis --db PATH
//	mfdc generate --session CODE --count N --seed S [--db PATH] [--out FILE]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mfdc",
		Short: "Leadership-type questionnaire scoring",
		Long: "mfdc orders questionnaire sets per session, scores answers into one of\n" +
			"sixteen leadership types and aggregates a session's responses.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.Version = version

	f := root.PersistentFlags()
	f.StringVar(&a.flags.config, "config", "", "Engine config YAML (default: embedded)")
	f.StringVar(&a.flags.catalog, "catalog", "", "Question catalog YAML (overrides catalog.path)")
	f.StringVar(&a.flags.db, "db", "", "SQLite database file (overrides storage.db_path)")
	f.StringVar(&a.flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newShuffleCmd(a),
		newScoreCmd(a),
		newAggregateCmd(a),
		newSessionCmd(a),
		newSubmitCmd(a),
		newParticipantsCmd(a),
		newGenerateCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
