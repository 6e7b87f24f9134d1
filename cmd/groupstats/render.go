package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis"
)

// barWidth is the widest bar drawn by renderHours.
const barWidth = 40

var titleStyle = lipgloss.NewStyle().Bold(true)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func rankedRows[V analysis.Number](ranked []analysis.Ranked[V]) [][]string {
	rows := make([][]string, len(ranked))
	for i, r := range ranked {
		rows[i] = []string{strconv.Itoa(i + 1), r.Key, formatNumber(r.Value)}
	}
	return rows
}

func renderRanked[V analysis.Number](w io.Writer, title, valueHeader string, ranked []analysis.Ranked[V]) {
	renderTable(w, title, []string{"#", "Name", valueHeader}, rankedRows(ranked))
}

// renderHours draws the messages per hour as a horizontal bar chart.
func renderHours(w io.Writer, hourly map[int]int) {
	peak := 0
	for _, n := range hourly {
		peak = max(peak, n)
	}
	rows := make([][]string, 0, 24)
	for h := 0; h < 24; h++ {
		n := hourly[h]
		width := 0
		if peak > 0 {
			width = n * barWidth / peak
		}
		rows = append(rows, []string{fmt.Sprintf("%02d:00", h), strconv.Itoa(n), strings.Repeat("#", width)})
	}
	renderTable(w, "Messages by hour", []string{"Hour", "Messages", ""}, rows)
}

func renderPopularity(w io.Writer, words []analysis.WordPopularity) {
	rows := make([][]string, len(words))
	for i, p := range words {
		rows[i] = []string{
			p.Word,
			strconv.Itoa(p.Uses),
			strconv.Itoa(p.Likes),
			strconv.Itoa(p.Messages),
			formatNumber(p.Popularity),
		}
	}
	renderTable(w, "Popular words", []string{"Word", "Uses", "Likes", "Messages", "Likes/message"}, rows)
}

func renderReport(w io.Writer, r analysis.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Group %s: %d messages from %d users", r.GroupID, r.Messages, r.Users)))
	renderRanked(w, "Top posters", "Messages", r.TopPosters)
	renderRanked(w, "Most liked", "Likes", r.TopLiked)
	renderRanked(w, "Likes per message", "Likes/message", r.LikesPerMessage)
	renderHours(w, r.Hourly)
	renderRanked(w, "Top words", "Uses", r.TopWords)
	renderRanked(w, "Most liked words", "Likes", r.MostLikedWords)
	renderPopularity(w, r.PopularWords)
}

func formatNumber[V analysis.Number](v V) string {
	switch x := any(v).(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	default:
		return fmt.Sprint(x)
	}
}
