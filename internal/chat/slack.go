package chat

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/sgerhart/roomlink/internal/logging"
)

// SlackMessenger posts prompts as Block Kit buttons. Each button carries the
// verb:target token as its value and the proposal correlation as its block ID.
type SlackMessenger struct {
	api    *slack.Client
	logger *logging.Logger
}

// NewSlackMessenger creates a Slack-backed messenger
func NewSlackMessenger(token string, logger *logging.Logger, options ...slack.Option) *SlackMessenger {
	return &SlackMessenger{
		api:    slack.New(token, options...),
		logger: logger.WithComponent("slack"),
	}
}

// PostText implements Messenger
func (m *SlackMessenger) PostText(ctx context.Context, channel, text string) error {
	if _, _, err := m.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// PostSelection implements Messenger
func (m *SlackMessenger) PostSelection(ctx context.Context, channel string, prompt Prompt) (string, error) {
	blocks := SelectionBlocks(prompt)

	_, ts, err := m.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(prompt.Text, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return "", fmt.Errorf("failed to post selection: %w", err)
	}

	m.logger.Debug("Selection posted", "channel", channel, "ts", ts, "correlation", prompt.Correlation)
	return ts, nil
}

// Delete implements Messenger
func (m *SlackMessenger) Delete(ctx context.Context, channel, ref string) error {
	if ref == "" {
		return nil
	}
	if _, _, err := m.api.DeleteMessageContext(ctx, channel, ref); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", ref, err)
	}
	return nil
}

// SelectionBlocks renders a prompt as Block Kit blocks
func SelectionBlocks(prompt Prompt) []slack.Block {
	blocks := make([]slack.Block, 0, 3)

	if prompt.Warning != "" {
		warning := slack.NewTextBlockObject(slack.MarkdownType, ":warning: "+prompt.Warning, false, false)
		blocks = append(blocks, slack.NewContextBlock("", warning))
	}

	text := slack.NewTextBlockObject(slack.MarkdownType, prompt.Text, false, false)
	blocks = append(blocks, slack.NewSectionBlock(text, nil, nil))

	buttons := make([]slack.BlockElement, 0, len(prompt.Targets))
	for _, target := range prompt.Targets {
		label := slack.NewTextBlockObject(slack.PlainTextType, target.Label, false, false)
		buttons = append(buttons, slack.NewButtonBlockElement(target.Token, target.Token, label))
	}
	blocks = append(blocks, slack.NewActionBlock(prompt.Correlation, buttons...))

	return blocks
}
