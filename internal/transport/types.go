// Package transport abstracts the outbound messaging platform used for
// operator notifications.
package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type SendOptions struct {
	DisablePreview bool
}

// Sender delivers one text message. Implementations own their timeout
// behavior; callers treat failures as best-effort.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
