package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/tokenizer"
)

// statKinds lists the statistics the stats command can print.
var statKinds = []string{
	"users", "likes", "likes-per-message", "hours", "words",
	"liked-words", "popular-words", "popular-info", "time", "report",
}

type statsFlags struct {
	top       int
	reload    bool
	save      bool
	json      bool
	skipStop  bool
	minLength int
	words     tokenizer.Options
}

func newStatsCmd() *cobra.Command {
	var f statsFlags
	cmd := &cobra.Command{
		Use:       "stats <kind> <group>",
		Short:     "Print statistics over a group's cached messages",
		Long:      "Kinds: " + strings.Join(statKinds, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: statKinds,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if !cmd.Flags().Changed("top") {
				f.top = a.cfg.Stats.Top
			}
			if cmd.Flags().Changed("skip-stop-words") {
				a.cfg.Stats.SkipStopWords = f.skipStop
			}
			if cmd.Flags().Changed("min-length") {
				a.cfg.Stats.MinWordLength = f.minLength
			}
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			kind, group := args[0], args[1]
			out := cmd.OutOrStdout()

			if kind == "report" {
				report, err := svc.Report(cmd.Context(), group, f.top, f.reload, f.save)
				if err != nil {
					return err
				}
				if f.json {
					return printJSON(out, report)
				}
				renderReport(out, report)
				return nil
			}

			if f.save {
				return fmt.Errorf("--save only applies to the report kind")
			}
			_, msgs, err := svc.Messages(cmd.Context(), group, f.reload)
			if err != nil {
				return err
			}
			f.words = svc.WordFilter()
			return printStat(out, kind, msgs, svc.Location(), f)
		}),
	}
	cmd.Flags().IntVar(&f.top, "top", 10, "number of entries to show, 0 for all")
	cmd.Flags().BoolVar(&f.reload, "reload", false, "fetch new messages before computing")
	cmd.Flags().BoolVar(&f.save, "save", false, "store the report as a snapshot")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON instead of tables")
	cmd.Flags().BoolVar(&f.skipStop, "skip-stop-words", false, "leave common words out of the word statistics")
	cmd.Flags().IntVar(&f.minLength, "min-length", 0, "leave words shorter than this out of the word statistics")
	return cmd
}

func printStat(out io.Writer, kind string, msgs []groupme.Message, loc *time.Location, f statsFlags) error {
	switch kind {
	case "users":
		return printRanked(out, f, "Messages per user", "Messages", analysis.TopN(analysis.CountByUser(msgs), f.top))
	case "likes":
		return printRanked(out, f, "Likes per user", "Likes", analysis.TopN(analysis.LikesByUser(msgs), f.top))
	case "likes-per-message":
		return printRanked(out, f, "Likes per message", "Likes/message", analysis.TopN(analysis.LikesPerMessageByUser(msgs), f.top))
	case "words":
		return printRanked(out, f, "Most used words", "Uses", analysis.TopN(analysis.WordCount(msgs, f.words), f.top))
	case "liked-words":
		return printRanked(out, f, "Most liked words", "Likes", analysis.TopN(analysis.MostLikedWords(msgs, f.words), f.top))
	case "popular-words":
		return printRanked(out, f, "Likes per word use", "Likes/message", analysis.TopN(analysis.PopularWords(msgs, f.words), f.top))
	case "popular-info":
		info := analysis.PopularWordsWithInfo(msgs, f.words)
		if f.top > 0 && len(info) > f.top {
			info = info[:f.top]
		}
		if f.json {
			return printJSON(out, info)
		}
		renderPopularity(out, info)
	case "hours":
		hourly := analysis.CountByHour(msgs, loc)
		if f.json {
			return printJSON(out, hourly)
		}
		renderHours(out, hourly)
	case "time":
		timed := analysis.TimeSplit(msgs, loc)
		if f.json {
			return printJSON(out, timed)
		}
		for _, m := range timed {
			fmt.Fprintf(out, "%s  %s\n", m.Time, m.Text)
		}
	default:
		return fmt.Errorf("unknown statistic %q", kind)
	}
	return nil
}

func printRanked[V analysis.Number](out io.Writer, f statsFlags, title, header string, ranked []analysis.Ranked[V]) error {
	if f.json {
		return printJSON(out, ranked)
	}
	renderRanked(out, title, header, ranked)
	return nil
}
