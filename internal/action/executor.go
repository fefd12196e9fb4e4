// Package action performs room actions on the machine it runs on: opening
// links and starting conferencing sessions.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkg/browser"

	"github.com/sgerhart/roomlink/internal/chat"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/zoom"
)

var (
	// ErrEmptyLink is returned when an open command carries no link
	ErrEmptyLink = errors.New("no link to open")
	// ErrMeetingsDisabled is returned when no meeting creator is configured
	ErrMeetingsDisabled = errors.New("meeting creation is not configured")
	// ErrUnknownVerb is returned for verbs the executor does not handle
	ErrUnknownVerb = errors.New("unknown verb")
)

// Opener opens a URL on this machine
type Opener interface {
	Open(url string) error
}

// MeetingCreator starts a new conferencing session
type MeetingCreator interface {
	CreateMeeting(ctx context.Context) (zoom.Meeting, error)
}

// BrowserOpener opens URLs with the desktop's default handler
type BrowserOpener struct{}

// Open implements Opener
func (BrowserOpener) Open(url string) error {
	return browser.OpenURL(url)
}

// Executor runs commands against the local room
type Executor struct {
	roomName  string
	opener    Opener
	meetings  MeetingCreator
	messenger chat.Messenger
	logger    *logging.Logger
}

// NewExecutor creates an executor for the room named roomName. meetings may
// be nil when meeting creation is not configured.
func NewExecutor(roomName string, opener Opener, meetings MeetingCreator, messenger chat.Messenger, logger *logging.Logger) *Executor {
	return &Executor{
		roomName:  roomName,
		opener:    opener,
		meetings:  meetings,
		messenger: messenger,
		logger:    logger.WithComponent("executor"),
	}
}

// RoomName returns the display name of the local room
func (e *Executor) RoomName() string {
	return e.roomName
}

// Execute runs verb with payload. For create, the join link is posted to
// originChannel when one is given.
func (e *Executor) Execute(ctx context.Context, verb model.Verb, payload, originChannel string) (model.ForwardResponse, error) {
	switch verb {
	case model.VerbOpen:
		return e.openLink(payload)
	case model.VerbCreate:
		return e.createMeeting(ctx, originChannel)
	default:
		return model.ForwardResponse{}, fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}
}

func (e *Executor) openLink(payload string) (model.ForwardResponse, error) {
	if strings.TrimSpace(payload) == "" {
		return model.ForwardResponse{}, ErrEmptyLink
	}

	link := NormalizeLink(payload)
	if err := e.opener.Open(link); err != nil {
		return model.ForwardResponse{}, fmt.Errorf("failed to open link: %w", err)
	}

	e.logger.Info("Link opened", "room", e.roomName, "link", link)
	return model.ForwardResponse{OK: true, Message: fmt.Sprintf("Opened link in %s", e.roomName)}, nil
}

func (e *Executor) createMeeting(ctx context.Context, originChannel string) (model.ForwardResponse, error) {
	if e.meetings == nil {
		return model.ForwardResponse{}, ErrMeetingsDisabled
	}

	meeting, err := e.meetings.CreateMeeting(ctx)
	if err != nil {
		return model.ForwardResponse{}, fmt.Errorf("failed to create meeting: %w", err)
	}

	if err := e.opener.Open(meeting.StartURL); err != nil {
		return model.ForwardResponse{}, fmt.Errorf("failed to start meeting: %w", err)
	}

	if originChannel != "" {
		text := fmt.Sprintf("%s URL:\n%s", e.roomName, meeting.JoinURL)
		if err := e.messenger.PostText(ctx, originChannel, text); err != nil {
			e.logger.Warn("Failed to post join link", "channel", originChannel, "error", err)
		}
	}

	e.logger.Info("Meeting started", "room", e.roomName, "join_url", meeting.JoinURL)
	return model.ForwardResponse{
		OK:      true,
		Message: fmt.Sprintf("Started meeting in %s", e.roomName),
		JoinURL: meeting.JoinURL,
	}, nil
}
