// Package slack delivers curated digests to a Slack channel: one digest
// message, then one threaded reply per item with its summary.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/models"
	"golang.org/x/time/rate"
)

// Poster posts digests to a single channel.
type Poster struct {
	client  *slack.Client
	channel string
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewPoster creates a poster for the channel. messagePause spaces successive
// posts so the batch stays under Slack's per-channel message rate.
func NewPoster(token, channel string, messagePause time.Duration, logger arbor.ILogger) (*Poster, error) {
	if token == "" {
		return nil, fmt.Errorf("Slack bot token is required (set GLEANER_SLACK_TOKEN, SLACK_BOT_TOKEN, or slack.token in config)")
	}
	if channel == "" {
		return nil, fmt.Errorf("Slack channel is required (set GLEANER_SLACK_CHANNEL, SLACK_CHANNEL, or slack.channel in config)")
	}
	if messagePause <= 0 {
		messagePause = time.Second
	}

	return &Poster{
		client:  slack.New(token),
		channel: channel,
		limiter: rate.NewLimiter(rate.Every(messagePause), 1),
		logger:  logger,
	}, nil
}

// PostDigest posts the digest message, then each item as a threaded reply
// under it. Returns the IDs of items that were actually posted; a failed item
// post is logged and skipped so the rest of the batch still goes out, and
// only successfully posted items are reported for ledger recording.
func (p *Poster) PostDigest(ctx context.Context, intro string, items []models.Item) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	_, threadTS, err := p.client.PostMessageContext(ctx, p.channel,
		slack.MsgOptionBlocks(digestBlocks(intro, len(items))...),
		slack.MsgOptionText(intro, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to post digest message: %w", err)
	}

	posted := make([]string, 0, len(items))
	for _, item := range items {
		if err := p.limiter.Wait(ctx); err != nil {
			return posted, err
		}
		if err := p.postItem(ctx, threadTS, item); err != nil {
			p.logger.Warn().Err(err).Str("id", item.ID).Msg("Failed to post item, skipping")
			continue
		}
		posted = append(posted, item.ID)
	}

	p.logger.Info().
		Str("channel", p.channel).
		Int("posted", len(posted)).
		Int("items", len(items)).
		Msg("Digest delivered")

	return posted, nil
}

func (p *Poster) postItem(ctx context.Context, threadTS string, item models.Item) error {
	_, _, err := p.client.PostMessageContext(ctx, p.channel,
		slack.MsgOptionBlocks(itemBlocks(item)...),
		slack.MsgOptionText(item.Title, false),
		slack.MsgOptionTS(threadTS),
	)
	return err
}

func digestBlocks(intro string, count int) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "Daily Digest", false, false),
	)
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, intro, false, false),
		nil, nil,
	)
	footer := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("%d items in thread", count), false, false),
	)
	return []slack.Block{header, body, footer}
}

func itemBlocks(item models.Item) []slack.Block {
	title := item.Title
	if item.ID != "" {
		title = fmt.Sprintf("<%s|%s>", item.ID, item.Title)
	}

	text := fmt.Sprintf("*%s*\n_%s_", title, item.SourceName)
	if item.Summary != nil && *item.Summary != "" {
		text += "\n" + *item.Summary
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			nil, nil,
		),
	}

	if item.SelectionRationale != nil && *item.SelectionRationale != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Why: %s", *item.SelectionRationale), false, false),
		))
	}

	return blocks
}
