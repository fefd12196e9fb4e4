package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
)

func testPrompt() Prompt {
	return Prompt{
		Correlation: "corr-1",
		Text:        "Where should the link open?",
		Warning:     "A session may already be in use",
		Targets: []model.Target{
			{ID: model.LocalTarget, Label: "Main Room", Token: "open:local"},
			{ID: "a", Label: "Room A", Token: "open:a"},
		},
	}
}

func TestSelectionBlocks(t *testing.T) {
	blocks := SelectionBlocks(testPrompt())
	require.Len(t, blocks, 3)

	assert.Equal(t, slack.MBTContext, blocks[0].BlockType())
	assert.Equal(t, slack.MBTSection, blocks[1].BlockType())

	actions, ok := blocks[2].(*slack.ActionBlock)
	require.True(t, ok)
	assert.Equal(t, "corr-1", actions.BlockID)
	require.Len(t, actions.Elements.ElementSet, 2)

	button, ok := actions.Elements.ElementSet[1].(*slack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, "open:a", button.Value)
}

func TestSelectionBlocks_NoWarning(t *testing.T) {
	prompt := testPrompt()
	prompt.Warning = ""
	assert.Len(t, SelectionBlocks(prompt), 2)
}

func TestSlackMessenger_PostAndDelete(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat.postMessage":
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C1", "ts": "1700000000.000100"})
		case "/chat.delete":
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C1", "ts": "1700000000.000100"})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown_method"})
		}
	}))
	defer srv.Close()

	m := NewSlackMessenger("xoxb-test", logging.Discard(), slack.OptionAPIURL(srv.URL+"/"))
	ctx := context.Background()

	ref, err := m.PostSelection(ctx, "C1", testPrompt())
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", ref)

	require.NoError(t, m.PostText(ctx, "C1", "hello"))
	require.NoError(t, m.Delete(ctx, "C1", ref))
	require.NoError(t, m.Delete(ctx, "C1", ""))

	assert.Equal(t, 2, calls["/chat.postMessage"])
	assert.Equal(t, 1, calls["/chat.delete"])
}

func TestSlackMessenger_PostError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer srv.Close()

	m := NewSlackMessenger("xoxb-test", logging.Discard(), slack.OptionAPIURL(srv.URL+"/"))
	err := m.PostText(context.Background(), "nope", "hello")
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	ref, err := r.PostSelection(ctx, "C1", testPrompt())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ref)

	require.NoError(t, r.PostText(ctx, "C1", "done"))
	last, ok := r.LastText()
	require.True(t, ok)
	assert.Equal(t, "done", last.Text)
}
