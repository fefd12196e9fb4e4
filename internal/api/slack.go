package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/sgerhart/roomlink/internal/model"
)

// slashVerbs maps slash commands to verbs
var slashVerbs = map[string]model.Verb{
	"/openurl":    model.VerbOpen,
	"/openzoom":   model.VerbOpen,
	"/createzoom": model.VerbCreate,
}

// handleSlashCommand acknowledges the command at once and runs it in the
// background. "/openurl <link>" and "/createzoom" start a selection;
// "/openurl <room> <link>" and "/createzoom <room>" dispatch directly.
func (s *Server) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	sc, err := slack.SlashCommandParse(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid slash command")
		return
	}

	verb, ok := slashVerbs[sc.Command]
	if !ok {
		s.writeJSONResponse(w, http.StatusOK, &slack.Msg{Text: "Unknown command " + sc.Command})
		return
	}

	cmd, room, usage := parseSlashText(verb, sc.Text)
	if usage != "" {
		s.writeJSONResponse(w, http.StatusOK, &slack.Msg{Text: usage})
		return
	}
	cmd.OriginChannel = sc.ChannelID
	cmd.ActingUser = sc.UserID

	ctx, cancel := s.chatContext(r)
	s.runAsync(func() {
		defer cancel()
		var err error
		if room != "" {
			_, err = s.dispatcher.Direct(ctx, cmd, room)
		} else {
			_, err = s.dispatcher.CommandEntry(ctx, cmd)
		}
		if err != nil {
			s.logger.Warn("Slash command failed", "command", sc.Command, "channel", sc.ChannelID, "error", err)
		}
	})

	w.WriteHeader(http.StatusOK)
}

// parseSlashText splits the command text into a command and an optional room.
// For open the link is the last word and anything before it names the room.
func parseSlashText(verb model.Verb, text string) (model.Command, string, string) {
	fields := strings.Fields(text)
	cmd := model.Command{Verb: verb}

	if verb == model.VerbCreate {
		return cmd, strings.Join(fields, " "), ""
	}

	if len(fields) == 0 {
		return cmd, "", "Usage: /openurl [room] <link>"
	}
	cmd.Payload = fields[len(fields)-1]
	return cmd, strings.Join(fields[:len(fields)-1], " "), ""
}

// handleInteraction resolves a button click on a selection prompt. The button
// value is the verb:target token and the block ID is the correlation.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid form")
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &cb); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid interaction payload")
		return
	}

	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := cb.ActionCallback.BlockActions[0]
	sel := model.Selection{
		Correlation: action.BlockID,
		Token:       action.Value,
		Channel:     cb.Channel.ID,
		MessageRef:  cb.Container.MessageTs,
	}

	ctx, cancel := s.chatContext(r)
	s.runAsync(func() {
		defer cancel()
		if _, err := s.dispatcher.Select(ctx, sel); err != nil {
			s.logger.Warn("Selection failed", "correlation", sel.Correlation, "token", sel.Token, "error", err)
		}
	})

	w.WriteHeader(http.StatusOK)
}
