// Package dispatch runs the two-phase selection flow: a command proposes the
// reachable rooms, and a selection resolves the pending action to one of them
// and routes it locally or to the chosen worker.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sgerhart/roomlink/internal/chat"
	"github.com/sgerhart/roomlink/internal/forward"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/pending"
	"github.com/sgerhart/roomlink/internal/probe"
	"github.com/sgerhart/roomlink/internal/recency"
	"github.com/sgerhart/roomlink/internal/registry"
)

var (
	// ErrInvalidCommand is returned for commands with an unknown verb or a missing payload
	ErrInvalidCommand = errors.New("invalid command")
	// ErrStaleSelection is returned when a selection has no pending action to resolve
	ErrStaleSelection = errors.New("selection has nothing to resolve")
	// ErrTargetUnavailable is returned when the selected room left the registry
	ErrTargetUnavailable = errors.New("target no longer available")
	// ErrVerbMismatch is returned when the token verb differs from the pending action
	ErrVerbMismatch = errors.New("selection verb does not match pending action")
	// ErrUnknownRoom is returned by Direct for names matching no room
	ErrUnknownRoom = errors.New("unknown room")
)

// RecencyWarning is shown with an open prompt when a room was used recently
const RecencyWarning = "A session may already be in use"

// Executor runs commands on the coordinator's own room
type Executor interface {
	Execute(ctx context.Context, verb model.Verb, payload, originChannel string) (model.ForwardResponse, error)
	RoomName() string
}

// Sweeper refreshes the registry before targets are offered or resolved
type Sweeper interface {
	Sweep(ctx context.Context) probe.SweepResult
}

// Dependencies wires the dispatcher to its collaborators
type Dependencies struct {
	Registry  *registry.Registry
	Prober    Sweeper
	Guard     *recency.Guard
	Pending   *pending.Store
	Messenger chat.Messenger
	Local     Executor
	Forwarder forward.Forwarder
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
}

// Dispatcher coordinates proposals and selections
type Dispatcher struct {
	registry  *registry.Registry
	prober    Sweeper
	guard     *recency.Guard
	pending   *pending.Store
	messenger chat.Messenger
	local     Executor
	forwarder forward.Forwarder
	logger    *logging.Logger
	metrics   *metrics.Metrics
	aliases   map[string]struct{}
}

// New creates a dispatcher
func New(deps Dependencies) *Dispatcher {
	d := &Dispatcher{
		registry:  deps.Registry,
		prober:    deps.Prober,
		guard:     deps.Guard,
		pending:   deps.Pending,
		messenger: deps.Messenger,
		local:     deps.Local,
		forwarder: deps.Forwarder,
		logger:    deps.Logger.WithComponent("dispatcher"),
		metrics:   deps.Metrics,
	}
	d.aliases = map[string]struct{}{
		model.LocalTarget: {},
		"main":            {},
	}
	d.aliases[model.RoomID(deps.Local.RoomName())] = struct{}{}

	// a worker holding an alias could never be addressed directly
	reserved := make([]string, 0, len(d.aliases))
	for alias := range d.aliases {
		reserved = append(reserved, alias)
	}
	d.registry.Reserve(reserved...)
	return d
}

// CommandEntry sweeps the registry, records a pending action under a fresh
// correlation token and posts the selectable targets to the origin channel.
func (d *Dispatcher) CommandEntry(ctx context.Context, cmd model.Command) (model.Proposal, error) {
	kind, err := validateCommand(cmd)
	if err != nil {
		return model.Proposal{}, err
	}

	d.prober.Sweep(ctx)
	rooms := d.registry.List()
	ids := roomIDs(rooms)

	var warning string
	if cmd.Verb == model.VerbOpen && d.guard.AnyRecentlyActive(ids) {
		warning = RecencyWarning
	}

	action := d.pending.Put(model.PendingAction{
		Kind:          kind,
		Payload:       cmd.Payload,
		OriginChannel: cmd.OriginChannel,
		ActingUser:    cmd.ActingUser,
	})

	targets := d.targets(cmd.Verb, rooms)
	ref, err := d.messenger.PostSelection(ctx, cmd.OriginChannel, chat.Prompt{
		Correlation: action.Correlation,
		Text:        promptText(cmd.Verb),
		Warning:     warning,
		Targets:     targets,
	})
	if err != nil {
		_, _ = d.pending.Take(action.Correlation)
		return model.Proposal{}, fmt.Errorf("failed to present targets: %w", err)
	}
	d.pending.SetMessageRef(action.Correlation, ref)

	d.guard.TouchAll(ids)
	d.metrics.ObserveProposal(string(cmd.Verb))
	d.logger.LogDispatchEvent("proposal_created",
		"correlation", action.Correlation,
		"verb", cmd.Verb,
		"targets", len(targets),
		"warning", warning != "")

	return model.Proposal{
		Correlation: action.Correlation,
		Verb:        cmd.Verb,
		Targets:     targets,
		Warning:     warning,
		MessageRef:  ref,
	}, nil
}

// Select resolves the pending action named by sel.Correlation to the target
// in sel.Token. The action is consumed on the first valid selection; later
// selections for the same correlation return ErrStaleSelection.
func (d *Dispatcher) Select(ctx context.Context, sel model.Selection) (model.Outcome, error) {
	verb, target, err := model.ParseToken(sel.Token)
	if err != nil {
		return d.reject(model.OutcomeInvalid, sel, err)
	}

	action, err := d.pending.Get(sel.Correlation)
	if err != nil {
		return d.reject(model.OutcomeInvalid, sel, fmt.Errorf("%w: %v", ErrStaleSelection, err))
	}
	if action.Kind.Verb() != verb {
		return d.reject(model.OutcomeInvalid, sel, fmt.Errorf("%w: token %q, pending %s", ErrVerbMismatch, sel.Token, action.Kind))
	}

	action, err = d.pending.Take(sel.Correlation)
	if err != nil {
		return d.reject(model.OutcomeInvalid, sel, fmt.Errorf("%w: %v", ErrStaleSelection, err))
	}

	channel := action.OriginChannel
	if sel.Channel != "" {
		channel = sel.Channel
	}
	ref := action.MessageRef
	if sel.MessageRef != "" {
		ref = sel.MessageRef
	}
	if err := d.messenger.Delete(ctx, channel, ref); err != nil {
		d.logger.Warn("Failed to remove selection prompt", "channel", channel, "ref", ref, "error", err)
	}

	return d.route(ctx, verb, target, action.Payload, action.OriginChannel)
}

// Direct dispatches a command straight to the room named by room, skipping
// the selection prompt. room may be a room ID, a display name, or an alias of
// the local room.
func (d *Dispatcher) Direct(ctx context.Context, cmd model.Command, room string) (model.Outcome, error) {
	if _, err := validateCommand(cmd); err != nil {
		return model.Outcome{Status: model.OutcomeInvalid, Verb: cmd.Verb, Message: err.Error()}, err
	}

	id := model.RoomID(room)
	if _, ok := d.aliases[id]; ok || id == "" {
		return d.route(ctx, cmd.Verb, model.LocalTarget, cmd.Payload, cmd.OriginChannel)
	}

	d.prober.Sweep(ctx)
	entry, ok := d.registry.Get(id)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownRoom, room)
		d.report(ctx, cmd.OriginChannel, d.unknownRoomText(room))
		d.metrics.ObserveSelection(string(model.OutcomeInvalid))
		return model.Outcome{Status: model.OutcomeInvalid, Target: id, Verb: cmd.Verb, Message: err.Error()}, err
	}

	return d.dispatchRemote(ctx, cmd.Verb, entry, cmd.Payload, cmd.OriginChannel)
}

// route runs the resolved action and reports the result to channel
func (d *Dispatcher) route(ctx context.Context, verb model.Verb, target, payload, channel string) (model.Outcome, error) {
	if target == model.LocalTarget {
		return d.dispatchLocal(ctx, verb, payload, channel)
	}

	// the room may have vanished between offer and selection
	d.prober.Sweep(ctx)
	room, ok := d.registry.Get(target)
	if !ok {
		d.logger.LogDispatchEvent("selection_stale", "target", target, "verb", verb)
		d.report(ctx, channel, fmt.Sprintf("Room %s is no longer available", target))
		d.metrics.ObserveSelection(string(model.OutcomeStale))
		err := fmt.Errorf("%w: %s", ErrTargetUnavailable, target)
		return model.Outcome{Status: model.OutcomeStale, Target: target, Verb: verb, Remote: true, Message: err.Error()}, err
	}

	return d.dispatchRemote(ctx, verb, room, payload, channel)
}

func (d *Dispatcher) dispatchLocal(ctx context.Context, verb model.Verb, payload, channel string) (model.Outcome, error) {
	d.logger.LogDispatchEvent("dispatch_local", "verb", verb, "room", d.local.RoomName())

	resp, err := d.local.Execute(ctx, verb, payload, channel)
	if err != nil {
		d.logger.LogDispatchEvent("local_failed", "verb", verb, "error", err)
		d.report(ctx, channel, fmt.Sprintf("Failed to %s in %s: %v", verb, d.local.RoomName(), err))
		d.metrics.ObserveSelection(string(model.OutcomeFailed))
		return model.Outcome{Status: model.OutcomeFailed, Target: model.LocalTarget, Verb: verb, Message: err.Error()}, err
	}

	if verb == model.VerbOpen {
		d.report(ctx, channel, resp.Message)
	}
	d.metrics.ObserveSelection(string(model.OutcomeResolved))
	return model.Outcome{Status: model.OutcomeResolved, Target: model.LocalTarget, Verb: verb, Message: resp.Message}, nil
}

func (d *Dispatcher) dispatchRemote(ctx context.Context, verb model.Verb, room model.RoomEntry, payload, channel string) (model.Outcome, error) {
	d.logger.LogDispatchEvent("dispatch_remote", "verb", verb, "room_id", room.ID, "address", room.Address)

	resp, err := d.forwarder.Forward(ctx, room, model.ForwardRequest{
		Verb:          verb,
		Payload:       payload,
		OriginChannel: channel,
	})
	if err != nil {
		d.metrics.ForwardFailures.Inc()
		d.logger.LogDispatchEvent("forward_failed", "verb", verb, "room_id", room.ID, "error", err)
		d.report(ctx, channel, fmt.Sprintf("Failed to %s in %s: %v", verb, room.Name, err))
		d.metrics.ObserveSelection(string(model.OutcomeFailed))
		return model.Outcome{Status: model.OutcomeFailed, Target: room.ID, Verb: verb, Remote: true, Message: err.Error()}, err
	}

	d.guard.Touch(room.ID)

	message := resp.Message
	if message == "" {
		message = fmt.Sprintf("Sent %s to %s", verb, room.Name)
	}
	if verb == model.VerbOpen {
		d.report(ctx, channel, message)
	}
	d.metrics.ObserveSelection(string(model.OutcomeResolved))
	return model.Outcome{Status: model.OutcomeResolved, Target: room.ID, Verb: verb, Remote: true, Message: message}, nil
}

func (d *Dispatcher) reject(status model.OutcomeStatus, sel model.Selection, err error) (model.Outcome, error) {
	d.logger.LogDispatchEvent("selection_invalid", "correlation", sel.Correlation, "token", sel.Token, "error", err)
	d.metrics.ObserveSelection(string(status))
	return model.Outcome{Status: status, Message: err.Error()}, err
}

// report posts text to channel; failures are logged only
func (d *Dispatcher) report(ctx context.Context, channel, text string) {
	if channel == "" || text == "" {
		return
	}
	if err := d.messenger.PostText(ctx, channel, text); err != nil {
		d.logger.Warn("Failed to report result", "channel", channel, "error", err)
	}
}

func (d *Dispatcher) targets(verb model.Verb, rooms []model.RoomEntry) []model.Target {
	targets := make([]model.Target, 0, len(rooms)+1)
	targets = append(targets, model.Target{
		ID:    model.LocalTarget,
		Label: d.local.RoomName(),
		Token: model.FormatToken(verb, model.LocalTarget),
	})
	for _, room := range rooms {
		targets = append(targets, model.Target{
			ID:    room.ID,
			Label: room.Name,
			Token: model.FormatToken(verb, room.ID),
		})
	}
	return targets
}

func (d *Dispatcher) unknownRoomText(room string) string {
	names := []string{d.local.RoomName()}
	for _, entry := range d.registry.List() {
		names = append(names, entry.Name)
	}
	sort.Strings(names[1:])
	return fmt.Sprintf("Unknown room %q. Available rooms: %s", room, strings.Join(names, ", "))
}

func validateCommand(cmd model.Command) (model.ActionKind, error) {
	kind, ok := cmd.Verb.Kind()
	if !ok {
		return "", fmt.Errorf("%w: unknown verb %q", ErrInvalidCommand, cmd.Verb)
	}
	if cmd.Verb == model.VerbOpen && strings.TrimSpace(cmd.Payload) == "" {
		return "", fmt.Errorf("%w: open requires a link", ErrInvalidCommand)
	}
	return kind, nil
}

func promptText(verb model.Verb) string {
	if verb == model.VerbCreate {
		return "Where should the meeting start?"
	}
	return "Where should the link open?"
}

func roomIDs(rooms []model.RoomEntry) []string {
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	return ids
}
