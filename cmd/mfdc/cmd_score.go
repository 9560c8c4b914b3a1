package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-mfdc/infrastructure/units"
	"github.com/ahrav/go-mfdc/internal/domain"
)

// orderedSet is one entry of the printed set order.
type orderedSet struct {
	Position int         `json:"position"`
	SetID    string      `json:"setId"`
	Axis     domain.Axis `json:"axis"`
	Items    []string    `json:"items"`
}

func newShuffleCmd(a *app) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "shuffle",
		Short: "Print the set order for a session",
		Long: "Print the set order for a session. With a database the order is read\n" +
			"from, or stored to, the session; without one it is computed only.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var sets []domain.Set
			if a.cfg.Storage.DBPath == "" {
				sets = units.Shuffle(session, a.catalog.Sets())
			} else {
				engine, err := a.engine(true)
				if err != nil {
					return err
				}
				if sets, err = engine.SetOrder(cmd.Context(), session); err != nil {
					return err
				}
			}

			out := make([]orderedSet, len(sets))
			for i, s := range sets {
				out[i] = orderedSet{
					Position: i + 1,
					SetID:    s.ID,
					Axis:     s.Axis,
					Items:    []string{s.Items[0].ID, s.Items[1].ID},
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session code (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newScoreCmd(a *app) *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an answer file and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := readAnswers(answersPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			engine, err := a.engine(false)
			if err != nil {
				return err
			}
			result, err := engine.Score(cmd.Context(), answers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", `JSON object of item id to answer ("-" for stdin, required)`)
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
