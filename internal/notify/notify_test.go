package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/lucasew/slackoffload/internal/eviction"
)

type fakePoster struct {
	channel string
	text    string
	calls   int
	err     error
}

func (f *fakePoster) PostMessage(ctx context.Context, channel, text string) error {
	f.calls++
	f.channel = channel
	f.text = text
	return f.err
}

func TestMessage(t *testing.T) {
	migrated := &eviction.Report{
		Result:       eviction.ResultMigrated,
		Location:     "cold",
		FilesRemoved: 1,
		BytesSaved:   700,
	}
	noop := &eviction.Report{
		Result:     eviction.ResultNoop,
		TotalAfter: 300,
		Limit:      1 << 30,
	}
	failed := &eviction.Report{Result: eviction.ResultFailed}

	t.Run("Success", func(t *testing.T) {
		text, ok := Message(migrated, false)
		want := "You were getting close to your Slack file limit so I've moved 1 files to the cold bucket on S3 saving 700 B."
		if !ok || text != want {
			t.Errorf("expected %q, got %q (%v)", want, text, ok)
		}
	})

	t.Run("No-op On Demand", func(t *testing.T) {
		text, ok := Message(noop, true)
		want := "Nothing to do, file size is 300 B and quota is 1.0 GiB"
		if !ok || text != want {
			t.Errorf("expected %q, got %q (%v)", want, text, ok)
		}
	})

	t.Run("No-op Scheduled Is Silent", func(t *testing.T) {
		if _, ok := Message(noop, false); ok {
			t.Error("scheduled no-op runs must not produce a message")
		}
	})

	t.Run("Failed Is Silent", func(t *testing.T) {
		if _, ok := Message(failed, true); ok {
			t.Error("failed runs must not produce a message")
		}
	})
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()
	r := &eviction.Report{Result: eviction.ResultMigrated, Location: "cold", FilesRemoved: 2, BytesSaved: 2048}

	t.Run("Posts To Room", func(t *testing.T) {
		poster := &fakePoster{}
		text, err := New(poster, "#ops").Notify(ctx, r, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if poster.calls != 1 || poster.channel != "#ops" || poster.text != text {
			t.Errorf("unexpected post %+v", poster)
		}
	})

	t.Run("No Room Only Renders", func(t *testing.T) {
		poster := &fakePoster{}
		text, err := New(poster, "").Notify(ctx, r, false)
		if err != nil || text == "" {
			t.Fatalf("expected rendered text, got %q, %v", text, err)
		}
		if poster.calls != 0 {
			t.Error("expected no post without a room")
		}
	})

	t.Run("Post Failure", func(t *testing.T) {
		postErr := errors.New("channel_not_found")
		_, err := New(&fakePoster{err: postErr}, "#ops").Notify(ctx, r, false)
		if !errors.Is(err, postErr) {
			t.Errorf("expected post error, got %v", err)
		}
	})
}
