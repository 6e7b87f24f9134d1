package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/candidates"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/kafka"
)

func newWatchCmd() *cobra.Command {
	var run string
	var completeOnly bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print candidates as they are published to Kafka",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if !a.cfg.Kafka.Enabled {
				return fmt.Errorf("kafka is disabled; set kafka.enabled or GS_KAFKA_BROKERS")
			}
			printer := candidatePrinter(cmd.OutOrStdout(), run, completeOnly)
			consumer := kafka.NewConsumer(a.cfg.Kafka, a.cfg.Kafka.CandidatesTopic, candidates.Handler(printer))
			slog.Info("watching candidates", "topic", a.cfg.Kafka.CandidatesTopic, "group", a.cfg.Kafka.ConsumerGroup)
			return consumer.Start(cmd.Context())
		}),
	}
	cmd.Flags().StringVar(&run, "run", "", "only print candidates of this run id")
	cmd.Flags().BoolVar(&completeOnly, "complete", false, "only print candidates covering every position")
	return cmd
}

func candidatePrinter(w io.Writer, run string, completeOnly bool) func(context.Context, candidates.CandidateEvent) error {
	return func(_ context.Context, ev candidates.CandidateEvent) error {
		if run != "" && ev.RunID != run {
			return nil
		}
		if completeOnly && !ev.Complete {
			return nil
		}
		status := "valid"
		if !ev.Valid {
			status = "invalid"
		}
		_, err := fmt.Fprintf(w, "%s #%d %-7s %d/%d  %s\n", ev.RunID, ev.Index, status, ev.Checked, ev.Positions, ev.Text)
		return err
	}
}
