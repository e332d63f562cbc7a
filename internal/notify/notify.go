// Package notify tells a chat room what a run did.
package notify

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/logctx"
)

// Poster sends a text message to a channel.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// Notifier posts run outcomes to Room. An empty Room only renders messages.
type Notifier struct {
	Poster Poster
	Room   string
}

func New(poster Poster, room string) *Notifier {
	return &Notifier{
		Poster: poster,
		Room:   room,
	}
}

// Message renders the text for a finished run. Runs that removed nothing
// only produce a message when triggered on demand; failed runs never do.
func Message(r *eviction.Report, onDemand bool) (string, bool) {
	switch {
	case r.Acted():
		return SuccessMessage(r), true
	case onDemand && r.Result == eviction.ResultNoop:
		return NoopMessage(r), true
	default:
		return "", false
	}
}

func SuccessMessage(r *eviction.Report) string {
	return fmt.Sprintf(
		"You were getting close to your Slack file limit so I've moved %d files to the %s bucket on S3 saving %s.",
		r.FilesRemoved, r.Location, humanize.IBytes(r.BytesSaved),
	)
}

func NoopMessage(r *eviction.Report) string {
	return fmt.Sprintf("Nothing to do, file size is %s and quota is %s",
		humanize.IBytes(r.TotalAfter), humanize.IBytes(r.Limit))
}

// Notify renders the message for r and posts it when a room is configured.
// It returns the rendered text, empty when the run warrants no message.
func (n *Notifier) Notify(ctx context.Context, r *eviction.Report, onDemand bool) (string, error) {
	text, ok := Message(r, onDemand)
	if !ok {
		return "", nil
	}
	if n.Room == "" || n.Poster == nil {
		return text, nil
	}

	if err := n.Poster.PostMessage(ctx, n.Room, text); err != nil {
		return text, fmt.Errorf("notify %s: %w", n.Room, err)
	}

	logger := logctx.FromContext(ctx)
	logger.Debug().Str("room", n.Room).Msg("Posted run notification")
	return text, nil
}
