package app

import (
	"context"

	"github.com/dmitrijs2005/moments/internal/config"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/transport/grpcpeer"
)

// Relay hosts the development relay.
type Relay struct {
	config *config.Relay
	logger logging.Logger
}

func NewRelay(c *config.Relay) *Relay {
	return &Relay{config: c, logger: logging.New(c.LogFormat, "relay")}
}

func (app *Relay) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	initSignalHandler(cancelFunc)

	relay := grpcpeer.NewRelay(app.logger, app.config.QueueSize)
	return relay.Run(ctx, app.config.ListenAddr)
}
