package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
)

// CommandHandler executes a raw forwarded command
type CommandHandler interface {
	HandleCommand(ctx context.Context, body []byte) (model.ForwardResponse, int)
}

// SubscribeCommands answers forwarded commands on the room's NATS subject
func SubscribeCommands(nc *nats.Conn, roomID string, handler CommandHandler, timeout time.Duration, logger *logging.Logger) (*nats.Subscription, error) {
	logger = logger.WithComponent("nats_commands")
	subject := model.CommandSubject(roomID)

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		reply := replyFor(handler, msg.Data, timeout)
		if err := msg.Respond(reply); err != nil {
			logger.Warn("Failed to reply to command", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Subscribed to commands", "subject", subject)
	return sub, nil
}

func replyFor(handler CommandHandler, data []byte, timeout time.Duration) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, _ := handler.HandleCommand(ctx, data)
	out, err := json.Marshal(resp)
	if err != nil {
		out = []byte(`{"ok":false,"message":"failed to encode reply"}`)
	}
	return out
}
