package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/application"
	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/testutils"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage workshop sessions",
	}

	var code, title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a session code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine(true)
			if err != nil {
				return err
			}
			if err := engine.CreateSession(cmd.Context(), code, title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s created\n", code)
			return nil
		},
	}
	create.Flags().StringVar(&code, "code", "", "Session code (required)")
	create.Flags().StringVar(&title, "title", "", "Session title")
	_ = create.MarkFlagRequired("code")

	cmd.AddCommand(create)
	return cmd
}

func newSubmitCmd(a *app) *cobra.Command {
	var session, answersPath, name, email string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Score and store one participant's answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := readAnswers(answersPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			engine, err := a.engine(true)
			if err != nil {
				return err
			}
			receipt, err := engine.Submit(cmd.Context(), application.Submission{
				SessionCode:      session,
				Answers:          answers,
				ParticipantName:  name,
				ParticipantEmail: email,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), receipt)
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "Session code (required)")
	f.StringVar(&answersPath, "answers", "", `JSON object of item id to answer ("-" for stdin, required)`)
	f.StringVar(&name, "name", "", "Participant name")
	f.StringVar(&email, "email", "", "Participant email")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newAggregateCmd(a *app) *cobra.Command {
	var responsesPath, session string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print the aggregate report for a response file or a stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if responsesPath != "" {
				responses, err := testutils.LoadResponses(responsesPath)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), units.Aggregate(responses))
			}

			engine, err := a.engine(true)
			if err != nil {
				return err
			}
			report, err := engine.Aggregates(cmd.Context(), session)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	f := cmd.Flags()
	f.StringVar(&responsesPath, "responses", "", "JSON array of stored responses")
	f.StringVar(&session, "session", "", "Session code in the database")
	cmd.MarkFlagsOneRequired("responses", "session")
	cmd.MarkFlagsMutuallyExclusive("responses", "session")
	return cmd
}

func newParticipantsCmd(a *app) *cobra.Command {
	var session, by string

	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List a session's participants grouped by type or by axis pole",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if by != "type" && by != "axis" {
				return fmt.Errorf("--by must be type or axis, got %q", by)
			}
			engine, err := a.engine(true)
			if err != nil {
				return err
			}
			if by == "type" {
				groups, err := engine.ParticipantsByType(cmd.Context(), session)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), groups)
			}
			groups, err := engine.ParticipantsByAxis(cmd.Context(), session)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), groups)
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "Session code (required)")
	f.StringVar(&by, "by", "type", "Grouping: type or axis")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		session string
		count   int
		seed    int64
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic scored responses for a session",
		Long: "Generate synthetic scored responses. With a database they are stored\n" +
			"under the session, creating it if needed; otherwise they are printed\n" +
			"or written to --out.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			responses := testutils.GenerateResponses(session, count, seed)

			if outPath != "" {
				if err := testutils.SaveResponses(responses, outPath); err != nil {
					return err
				}
			}
			if a.cfg.Storage.DBPath == "" {
				if outPath != "" {
					return nil
				}
				return writeJSON(cmd.OutOrStdout(), responses)
			}

			engine, err := a.engine(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := engine.CreateSession(ctx, session, "Generated"); err != nil && !errors.Is(err, domain.ErrSessionExists) {
				return err
			}
			for _, r := range responses {
				if err := a.backend.SaveResponse(ctx, r); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d responses in session %s\n", len(responses), session)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "Session code (required)")
	f.IntVar(&count, "count", 16, "Number of responses")
	f.Int64Var(&seed, "seed", 1, "Random seed")
	f.StringVar(&outPath, "out", "", "Write the responses to this JSON file")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
