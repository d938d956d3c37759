// Command publish-fact publishes one poll fact on the Redis fact channel, the
// same way the poll service does. Useful for smoke-testing a deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/redis"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/version"
	"github.com/google/uuid"
)

type options struct {
	kind      string
	pollID    string
	optionID  string
	count     int
	total     int
	commentID string
	username  string
	text      string
}

type publishFunc func(ctx context.Context, p domain.FactPublisher) error

// buildFact validates the flags for kind and returns the matching publish
// call.
func buildFact(o options, now time.Time) (publishFunc, error) {
	switch o.kind {
	case "vote":
		fact := domain.VoteRecorded{PollID: o.pollID, OptionID: o.optionID, NewOptionCount: o.count, NewPollTotal: o.total}
		if err := fact.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, p domain.FactPublisher) error { return p.PublishVoteRecorded(ctx, fact) }, nil
	case "like":
		fact := domain.LikeToggled{PollID: o.pollID, NewLikeTotal: o.total}
		if err := fact.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, p domain.FactPublisher) error { return p.PublishLikeToggled(ctx, fact) }, nil
	case "comment":
		commentID := o.commentID
		if commentID == "" {
			commentID = uuid.NewString()
		}
		fact := domain.CommentPosted{PollID: o.pollID, Comment: domain.CommentSummary{
			ID:          commentID,
			Username:    o.username,
			CommentText: o.text,
			CreatedAt:   now.UTC(),
		}}
		if err := fact.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, p domain.FactPublisher) error { return p.PublishCommentPosted(ctx, fact) }, nil
	default:
		return nil, fmt.Errorf("unknown kind %q (want vote, like or comment)", o.kind)
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid URL"
	}
	return u.Redacted()
}

func main() {
	var o options
	var (
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		channel     = flag.String("channel", "quickpoll:facts", "Fact channel")
		timeout     = flag.Duration("timeout", 5*time.Second, "Connect and publish timeout")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.StringVar(&o.kind, "kind", "", "Fact kind: vote, like or comment")
	flag.StringVar(&o.pollID, "poll", "", "Poll ID")
	flag.StringVar(&o.optionID, "option", "", "Option ID (vote)")
	flag.IntVar(&o.count, "count", 0, "New vote count of the option (vote)")
	flag.IntVar(&o.total, "total", 0, "New poll vote total (vote) or like total (like)")
	flag.StringVar(&o.commentID, "comment-id", "", "Comment ID (comment, random when empty)")
	flag.StringVar(&o.username, "username", "", "Comment author (comment)")
	flag.StringVar(&o.text, "text", "", "Comment text (comment)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	publish, err := buildFact(o, time.Now())
	if err != nil {
		log.Fatalf("Invalid fact: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", redactURL(*redisURL))

	if err := publish(ctx, redis.NewFactPublisher(rdb, *channel)); err != nil {
		log.Fatalf("Failed to publish fact: %v", err)
	}
	slog.Info("Fact published", "kind", o.kind, "poll_id", o.pollID, "channel", *channel)
}
