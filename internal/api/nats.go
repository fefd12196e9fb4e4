package api

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/registry"
	"github.com/sgerhart/roomlink/internal/validate"
)

// RegistrationConsumer applies worker announcements published over NATS
type RegistrationConsumer struct {
	registry  *registry.Registry
	validator *validate.Validator
	logger    *logging.Logger
}

// NewRegistrationConsumer creates a consumer
func NewRegistrationConsumer(reg *registry.Registry, validator *validate.Validator, logger *logging.Logger) *RegistrationConsumer {
	return &RegistrationConsumer{
		registry:  reg,
		validator: validator,
		logger:    logger.WithComponent("nats_register"),
	}
}

// Subscribe starts consuming announcements on the registration subject
func (c *RegistrationConsumer) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(model.RegisterSubject, func(msg *nats.Msg) {
		if err := c.Handle(msg.Data); err != nil {
			c.logger.Warn("Ignored announcement", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", model.RegisterSubject, err)
	}

	c.logger.Info("Subscribed to announcements", "subject", model.RegisterSubject)
	return sub, nil
}

// Handle validates and applies one announcement
func (c *RegistrationConsumer) Handle(data []byte) error {
	if err := c.validator.Validate(data); err != nil {
		return err
	}

	var req model.RegisterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to decode announcement: %w", err)
	}

	_, err := c.registry.Register(req.ID, req.Name, req.Addr())
	return err
}
