// Package chat posts selection prompts and results to the chat platform.
package chat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
)

// Prompt is a message with selectable options
type Prompt struct {
	Correlation string
	Text        string
	Warning     string
	Targets     []model.Target
}

// Messenger is the chat capability the coordinator and workers need
type Messenger interface {
	PostText(ctx context.Context, channel, text string) error
	PostSelection(ctx context.Context, channel string, prompt Prompt) (string, error)
	Delete(ctx context.Context, channel, ref string) error
}

// LogMessenger writes messages to the log instead of a chat platform. It is
// used when no chat token is configured.
type LogMessenger struct {
	logger *logging.Logger
	seq    atomic.Int64
}

// NewLogMessenger creates a log-backed messenger
func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.WithComponent("chat")}
}

// PostText implements Messenger
func (m *LogMessenger) PostText(ctx context.Context, channel, text string) error {
	m.logger.Info("Chat message", "channel", channel, "text", text)
	return nil
}

// PostSelection implements Messenger
func (m *LogMessenger) PostSelection(ctx context.Context, channel string, prompt Prompt) (string, error) {
	ref := fmt.Sprintf("log-%d", m.seq.Add(1))
	tokens := make([]string, len(prompt.Targets))
	for i, target := range prompt.Targets {
		tokens[i] = target.Token
	}
	m.logger.Info("Chat selection",
		"channel", channel,
		"ref", ref,
		"correlation", prompt.Correlation,
		"text", prompt.Text,
		"warning", prompt.Warning,
		"tokens", tokens)
	return ref, nil
}

// Delete implements Messenger
func (m *LogMessenger) Delete(ctx context.Context, channel, ref string) error {
	m.logger.Debug("Chat message deleted", "channel", channel, "ref", ref)
	return nil
}

// Recorder is an in-memory Messenger for tests
type Recorder struct {
	mu         sync.Mutex
	Texts      []Posted
	Selections []PostedSelection
	Deleted    []string
	Err        error
}

// Posted is a recorded text message
type Posted struct {
	Channel string
	Text    string
}

// PostedSelection is a recorded prompt
type PostedSelection struct {
	Channel string
	Ref     string
	Prompt  Prompt
}

// PostText implements Messenger
func (r *Recorder) PostText(ctx context.Context, channel, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Texts = append(r.Texts, Posted{Channel: channel, Text: text})
	return nil
}

// PostSelection implements Messenger
func (r *Recorder) PostSelection(ctx context.Context, channel string, prompt Prompt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	ref := fmt.Sprintf("msg-%d", len(r.Selections)+1)
	r.Selections = append(r.Selections, PostedSelection{Channel: channel, Ref: ref, Prompt: prompt})
	return ref, nil
}

// Delete implements Messenger
func (r *Recorder) Delete(ctx context.Context, channel, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deleted = append(r.Deleted, ref)
	return nil
}

// LastText returns the most recent text message
func (r *Recorder) LastText() (Posted, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Texts) == 0 {
		return Posted{}, false
	}
	return r.Texts[len(r.Texts)-1], true
}
