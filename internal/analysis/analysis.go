// Package analysis computes per-user, per-hour and per-word statistics over
// a group's cached messages.
package analysis

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
)

// Number is the value type of a ranked statistic.
type Number interface {
	~int | ~int64 | ~float64
}

// Ranked is one entry of a sorted statistic.
type Ranked[V Number] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

// TopN sorts m by value descending, ties by key, and returns the first n
// entries. n <= 0 returns all of them.
func TopN[V Number](m map[string]V, n int) []Ranked[V] {
	out := make([]Ranked[V], 0, len(m))
	for k, v := range m {
		out = append(out, Ranked[V]{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Ranked[V]) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ByUser groups messages by sender name, keeping their order.
func ByUser(msgs []groupme.Message) map[string][]groupme.Message {
	users := make(map[string][]groupme.Message)
	for _, m := range msgs {
		users[m.Name] = append(users[m.Name], m)
	}
	return users
}

// CountByUser returns the number of messages each user sent.
func CountByUser(msgs []groupme.Message) map[string]int {
	counts := make(map[string]int)
	for _, m := range msgs {
		counts[m.Name]++
	}
	return counts
}

// LikesByUser returns the total likes each user received.
func LikesByUser(msgs []groupme.Message) map[string]int {
	likes := make(map[string]int)
	for _, m := range msgs {
		likes[m.Name] += m.Likes()
	}
	return likes
}

// LikesPerMessageByUser returns each user's average likes per message.
func LikesPerMessageByUser(msgs []groupme.Message) map[string]float64 {
	counts := CountByUser(msgs)
	likes := LikesByUser(msgs)
	out := make(map[string]float64, len(counts))
	for user, n := range counts {
		out[user] = float64(likes[user]) / float64(n)
	}
	return out
}

// TimeLayout renders a message time with its date, month and weekday names,
// a 12-hour clock and the full C-locale date and time.
const TimeLayout = "2006-01-02 - January Monday - 03:04:05PM " + time.ANSIC

// TimedMessage is a message text with its local creation time.
type TimedMessage struct {
	Text string `json:"text"`
	Time string `json:"time"`
	Hour int    `json:"hour"`
}

// TimeSplit pairs each message text with its formatted time and hour in loc.
func TimeSplit(msgs []groupme.Message, loc *time.Location) []TimedMessage {
	out := make([]TimedMessage, 0, len(msgs))
	for _, m := range msgs {
		t := m.Time(loc)
		out = append(out, TimedMessage{
			Text: m.Text,
			Time: t.Format(TimeLayout),
			Hour: t.Hour(),
		})
	}
	return out
}

// CountByHour returns the number of messages sent in each local hour. All
// 24 hours are present, including empty ones.
func CountByHour(msgs []groupme.Message, loc *time.Location) map[int]int {
	counts := make(map[int]int, 24)
	for h := 0; h < 24; h++ {
		counts[h] = 0
	}
	for _, m := range msgs {
		counts[m.Time(loc).Hour()]++
	}
	return counts
}

// WordCount returns how often each word kept by opts occurs across all
// message texts.
func WordCount(msgs []groupme.Message, opts tokenizer.Options) map[string]int {
	freq := make(map[string]int)
	for _, m := range msgs {
		for _, w := range tokenizer.Tokenize(m.Text, opts) {
			freq[w]++
		}
	}
	return freq
}

// wordStats accumulates, per word, the likes of the messages containing
// it and the number of those messages. A word counts once per message.
func wordStats(msgs []groupme.Message, opts tokenizer.Options) (likes, present map[string]int) {
	likes = make(map[string]int)
	present = make(map[string]int)
	for _, m := range msgs {
		for _, w := range tokenizer.UniqueTokens(m.Text, opts) {
			likes[w] += m.Likes()
			present[w]++
		}
	}
	return likes, present
}

// MostLikedWords returns the total likes of the messages containing each
// word.
func MostLikedWords(msgs []groupme.Message, opts tokenizer.Options) map[string]int {
	likes, _ := wordStats(msgs, opts)
	return likes
}

// PopularWords returns, per word, the average likes of the messages that
// contain it.
func PopularWords(msgs []groupme.Message, opts tokenizer.Options) map[string]float64 {
	likes, present := wordStats(msgs, opts)
	out := make(map[string]float64, len(present))
	for w, n := range present {
		out[w] = float64(likes[w]) / float64(n)
	}
	return out
}

// WordPopularity is the detail behind a PopularWords score.
type WordPopularity struct {
	Word       string  `json:"word"`
	Uses       int     `json:"uses"`
	Likes      int     `json:"likes"`
	Messages   int     `json:"messages"`
	Popularity float64 `json:"popularity"`
}

// PopularWordsWithInfo returns popularity details for every word used more
// than once, most popular first.
func PopularWordsWithInfo(msgs []groupme.Message, opts tokenizer.Options) []WordPopularity {
	freq := WordCount(msgs, opts)
	likes, present := wordStats(msgs, opts)
	out := make([]WordPopularity, 0, len(present))
	for w, n := range present {
		if freq[w] <= 1 {
			continue
		}
		out = append(out, WordPopularity{
			Word:       w,
			Uses:       freq[w],
			Likes:      likes[w],
			Messages:   n,
			Popularity: float64(likes[w]) / float64(n),
		})
	}
	slices.SortFunc(out, func(a, b WordPopularity) int {
		if c := cmp.Compare(b.Popularity, a.Popularity); c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})
	return out
}

// UserTexts returns the texts of user's messages in cache order. A user
// with no messages in msgs is ErrUserNotFound.
func UserTexts(msgs []groupme.Message, user string) ([]string, error) {
	var texts []string
	found := false
	for _, m := range msgs {
		if m.Name != user {
			continue
		}
		found = true
		texts = append(texts, m.Text)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.ErrUserNotFound, http.StatusNotFound, "no messages from user %q", user)
	}
	return texts, nil
}
