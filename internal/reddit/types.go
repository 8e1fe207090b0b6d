package reddit

import (
	"context"
	"errors"
	"time"
)

// Classified client errors. Callers branch with errors.Is.
var (
	ErrAuth        = errors.New("reddit: authentication failed")
	ErrRateLimited = errors.New("reddit: rate limited")
	ErrRejected    = errors.New("reddit: submission rejected")
)

// Credential is an OAuth access token for the bot account.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// Post is a fully merged, validated submission.
type Post struct {
	Subreddit string
	Kind      string // "self" or "link"
	Title     string
	Body      string
	URL       string
	FlairID   string
	FlairText string
}

// Submission identifies a published item.
type Submission struct {
	ID        string
	Permalink string
}

// Item is the platform's current view of a published thing.
//
// RemovedByCategory is empty while the item is up; "deleted" means the author
// removed it themselves; anything else ("moderator", "spam", ...) is a
// takedown.
type Item struct {
	ID                string
	Author            string
	RemovedByCategory string
	CreatedUTC        int64
}

// Client is the boundary to the external platform.
//
// LookupRecent is a best-effort fallback used when a submit response omits the
// new item's id: it scans the bot account's recent submissions for a matching
// title in the given subreddit, created at or after sinceMs. It returns
// (nil, nil) when nothing matches.
type Client interface {
	Authenticate(ctx context.Context) (Credential, error)
	Publish(ctx context.Context, cred Credential, post Post) (Submission, error)
	LookupByID(ctx context.Context, id string) (*Item, error)
	LookupRecent(ctx context.Context, subreddit, title string, sinceMs int64) (*Submission, error)
}
