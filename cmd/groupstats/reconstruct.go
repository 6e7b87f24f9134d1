package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/service"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/resilience"
)

type constraintFlags struct {
	file   string
	group  string
	user   string
	reload bool
}

func (f *constraintFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "constraints", "", "file with one letter set per line")
	cmd.Flags().StringVar(&f.group, "group", "", "group whose messages supply the letter sets")
	cmd.Flags().StringVar(&f.user, "user", "", "user whose messages supply the letter sets")
}

// load reads the constraints file, if any.
func (f *constraintFlags) load() (reconstruct.Constraints, error) {
	if f.file == "" {
		return nil, nil
	}
	fh, err := os.Open(f.file)
	if err != nil {
		return nil, fmt.Errorf("opening constraints: %w", err)
	}
	defer fh.Close()
	return reconstruct.ParseConstraints(fh)
}

func newReconstructCmd() *cobra.Command {
	var (
		cf        constraintFlags
		wordsPath string
		threshold int
		frontier  int
		dedupe    bool
		publish   bool
		timeout   time.Duration
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Recover candidate phrases from per-message letter sets",
		Long: `Reconstruct searches for phrases whose i-th letter belongs to the i-th
letter set and which segment into dictionary words. The sets come from a
file (--constraints) or from one user's messages (--group and --user).`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			constraints, err := cf.load()
			if err != nil {
				return err
			}
			req := service.Request{
				Constraints: constraints,
				Group:       cf.group,
				User:        cf.user,
				Reload:      cf.reload,
				Publish:     publish,
			}
			if wordsPath != "" {
				_, words, err := trie.LoadFile(wordsPath)
				if err != nil {
					return err
				}
				// an empty file is still an override: a root-only dictionary
				req.Words = append([]string{}, words...)
			}
			if cmd.Flags().Changed("threshold") {
				req.EarlyEmitThreshold = &threshold
			}
			if cmd.Flags().Changed("max-frontier") {
				req.MaxFrontier = &frontier
			}
			if cmd.Flags().Changed("dedupe") {
				req.DedupeStates = &dedupe
			}

			svc, err := a.service(cmd.Context(), wordsPath == "")
			if err != nil {
				return err
			}
			var resp service.Response
			err = resilience.WithTimeout(cmd.Context(), timeout, "reconstruct", func(ctx context.Context) error {
				var err error
				resp, err = svc.Reconstruct(ctx, req)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, resp)
			}
			for _, text := range resp.Candidates {
				fmt.Fprintln(out, text)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d candidates, %d positions, peak frontier %d, truncated %t\n",
				len(resp.Candidates), resp.Positions, resp.PeakFrontier, resp.Truncated)
			return nil
		}),
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&cf.reload, "reload", false, "fetch new messages first")
	cmd.Flags().StringVar(&wordsPath, "words", "", "word list to use instead of the configured one")
	cmd.Flags().IntVar(&threshold, "threshold", 3, "emit dying branches when fewer than this many positions remain")
	cmd.Flags().IntVar(&frontier, "max-frontier", 0, "cap on live hypotheses, 0 for no cap")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "merge hypotheses on the same dictionary node")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the candidates to Kafka")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the search after this long, 0 for no limit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var (
		cf        constraintFlags
		wildcards string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "verify <text>",
		Short: "Check a phrase against a sequence of letter sets",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			constraints, err := cf.load()
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			v, err := svc.Verify(cmd.Context(), constraints, cf.group, cf.user, args[0], wildcards)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, v)
			}
			if v.Valid {
				fmt.Fprintf(out, "valid: %d positions checked\n", v.Checked)
				return nil
			}
			fmt.Fprintf(out, "invalid: first mismatch at position %d, mismatches %v, %d positions checked\n",
				v.FirstMismatch, v.Mismatches, v.Checked)
			return nil
		}),
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&wildcards, "wildcards", "", "characters that match any letter (default \"_?*\")")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification as JSON")
	return cmd
}
