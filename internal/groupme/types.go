package groupme

import "time"

// Message is one chat message as returned by the GroupMe API.
type Message struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"group_id"`
	Name        string   `json:"name"`
	UserID      string   `json:"user_id"`
	SenderType  string   `json:"sender_type,omitempty"`
	Text        string   `json:"text"`
	CreatedAt   int64    `json:"created_at"`
	FavoritedBy []string `json:"favorited_by"`
}

// Likes returns the number of users who liked the message.
func (m Message) Likes() int { return len(m.FavoritedBy) }

// Time returns the creation time in loc.
func (m Message) Time(loc *time.Location) time.Time {
	return time.Unix(m.CreatedAt, 0).In(loc)
}

// Group is a chat the token's owner belongs to.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type envelope[T any] struct {
	Response T `json:"response"`
	Meta     struct {
		Code   int      `json:"code"`
		Errors []string `json:"errors,omitempty"`
	} `json:"meta"`
}

type messagesPage struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

// PageQuery selects one page of messages. At most one of BeforeID and
// AfterID should be set.
type PageQuery struct {
	BeforeID string
	AfterID  string
}
