package analysis

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/tokenizer"
)

// Report bundles the headline statistics of one group.
type Report struct {
	GroupID         string            `json:"group_id"`
	Messages        int               `json:"messages"`
	Users           int               `json:"users"`
	GeneratedAt     time.Time         `json:"generated_at"`
	TopPosters      []Ranked[int]     `json:"top_posters"`
	TopLiked        []Ranked[int]     `json:"top_liked"`
	LikesPerMessage []Ranked[float64] `json:"likes_per_message"`
	Hourly          map[int]int       `json:"hourly"`
	TopWords        []Ranked[int]     `json:"top_words"`
	MostLikedWords  []Ranked[int]     `json:"most_liked_words"`
	PopularWords    []WordPopularity  `json:"popular_words"`
}

// BuildReport computes a Report over msgs, keeping top entries of each
// ranking (all of them when top <= 0). words filters the word rankings.
func BuildReport(groupID string, msgs []groupme.Message, loc *time.Location, top int, words tokenizer.Options) Report {
	popular := PopularWordsWithInfo(msgs, words)
	if top > 0 && len(popular) > top {
		popular = popular[:top]
	}
	return Report{
		GroupID:         groupID,
		Messages:        len(msgs),
		Users:           len(ByUser(msgs)),
		GeneratedAt:     time.Now().UTC(),
		TopPosters:      TopN(CountByUser(msgs), top),
		TopLiked:        TopN(LikesByUser(msgs), top),
		LikesPerMessage: TopN(LikesPerMessageByUser(msgs), top),
		Hourly:          CountByHour(msgs, loc),
		TopWords:        TopN(WordCount(msgs, words), top),
		MostLikedWords:  TopN(MostLikedWords(msgs, words), top),
		PopularWords:    popular,
	}
}
