// Package model holds the types shared by the coordinator, the workers and the CLI.
package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// LocalTarget is the selection target that names the coordinator's own room
const LocalTarget = "local"

// ErrInvalidToken is returned when a selection token cannot be parsed
var ErrInvalidToken = errors.New("invalid selection token")

// ActionKind identifies what a pending action does once resolved
type ActionKind string

const (
	ActionOpenLink      ActionKind = "open_link"
	ActionCreateMeeting ActionKind = "create_meeting"
)

// Verb is the short command name carried in selection tokens and forwarded commands
type Verb string

const (
	VerbOpen   Verb = "open"
	VerbCreate Verb = "create"
)

// Kind maps a verb to its action kind
func (v Verb) Kind() (ActionKind, bool) {
	switch v {
	case VerbOpen:
		return ActionOpenLink, true
	case VerbCreate:
		return ActionCreateMeeting, true
	default:
		return "", false
	}
}

// Verb maps an action kind back to its verb
func (k ActionKind) Verb() Verb {
	if k == ActionCreateMeeting {
		return VerbCreate
	}
	return VerbOpen
}

// RoomEntry represents one remote worker known to the coordinator
type RoomEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// PendingAction is a command awaiting resolution to a specific room
type PendingAction struct {
	Correlation   string     `json:"correlation"`
	Kind          ActionKind `json:"kind"`
	Payload       string     `json:"payload,omitempty"`
	OriginChannel string     `json:"origin_channel"`
	ActingUser    string     `json:"acting_user,omitempty"`
	MessageRef    string     `json:"message_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Command is a user-issued request that starts a selection round-trip
type Command struct {
	Verb          Verb   `json:"verb"`
	Payload       string `json:"payload,omitempty"`
	OriginChannel string `json:"channel"`
	ActingUser    string `json:"user,omitempty"`
}

// Target is one selectable option presented to the user
type Target struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Token string `json:"token"`
}

// Proposal is what the coordinator presented for a command
type Proposal struct {
	Correlation string   `json:"correlation"`
	Verb        Verb     `json:"verb"`
	Targets     []Target `json:"targets"`
	Warning     string   `json:"warning,omitempty"`
	MessageRef  string   `json:"message_ref,omitempty"`
}

// Selection is the follow-up event that resolves a proposal
type Selection struct {
	Correlation string `json:"correlation"`
	Token       string `json:"token"`
	Channel     string `json:"channel,omitempty"`
	MessageRef  string `json:"message_ref,omitempty"`
}

// OutcomeStatus describes how a selection ended
type OutcomeStatus string

const (
	OutcomeResolved OutcomeStatus = "resolved"
	OutcomeInvalid  OutcomeStatus = "invalid"
	OutcomeStale    OutcomeStatus = "stale"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome reports the result of a selection
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Target  string        `json:"target,omitempty"`
	Verb    Verb          `json:"verb,omitempty"`
	Remote  bool          `json:"remote"`
	Message string        `json:"message,omitempty"`
}

// ForwardRequest is the command body sent from the coordinator to a worker
type ForwardRequest struct {
	Verb          Verb   `json:"verb"`
	Payload       string `json:"payload,omitempty"`
	OriginChannel string `json:"origin_channel,omitempty"`
}

// ForwardResponse is the worker's reply to a forwarded command
type ForwardResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	JoinURL string `json:"join_url,omitempty"`
}

// RegisterRequest is a worker's self-announcement
type RegisterRequest struct {
	Name    string `json:"name"`
	IP      string `json:"ip,omitempty"`
	Address string `json:"address,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Addr returns the announced address, preferring the explicit address field
func (r RegisterRequest) Addr() string {
	if r.Address != "" {
		return r.Address
	}
	return r.IP
}

// RoomID derives the stable identifier for a room from its display name
func RoomID(name string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
}

// FormatToken encodes a selection token as verb:target
func FormatToken(verb Verb, target string) string {
	return string(verb) + ":" + target
}

// ParseToken decodes a verb:target selection token
func ParseToken(token string) (Verb, string, error) {
	verbPart, target, ok := strings.Cut(token, ":")
	if !ok || target == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	verb := Verb(verbPart)
	if _, known := verb.Kind(); !known {
		return "", "", fmt.Errorf("%w: unknown verb %q", ErrInvalidToken, verbPart)
	}
	return verb, target, nil
}

// DefaultWorkerPort is the port workers listen on when an address omits one
const DefaultWorkerPort = 42096

// WorkerURL turns a registered address into a base URL. Bare hosts get the
// default worker port; addresses that already carry a scheme are kept.
func WorkerURL(address string) string {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if strings.Contains(address, "://") {
		return address
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(strings.Trim(address, "[]"), strconv.Itoa(DefaultWorkerPort))
	}
	return "http://" + address
}

// RegisterSubject is the NATS subject workers announce themselves on
const RegisterSubject = "roomlink.register"

// CommandSubject is the NATS subject a worker receives forwarded commands on
func CommandSubject(roomID string) string {
	return "roomlink.commands." + roomID
}
