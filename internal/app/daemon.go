package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/grpc"

	"github.com/dmitrijs2005/moments/internal/attachments"
	"github.com/dmitrijs2005/moments/internal/config"
	"github.com/dmitrijs2005/moments/internal/filex"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/service"
	"github.com/dmitrijs2005/moments/internal/transport/grpcpeer"
)

// Daemon hosts one moments service connected to a relay.
type Daemon struct {
	config      *config.Daemon
	logger      logging.Logger
	dialOptions []grpc.DialOption
}

func NewDaemon(c *config.Daemon) (*Daemon, error) {
	if c.UserID == "" {
		return nil, errors.New("user id is required")
	}
	return &Daemon{
		config: c,
		logger: logging.New(c.LogFormat, "momentsd"),
	}, nil
}

func (app *Daemon) presigner(ctx context.Context) *attachments.Presigner {
	s3 := app.config.S3
	p, err := attachments.New(ctx, attachments.Config{
		Bucket:       s3.Bucket,
		Region:       s3.Region,
		BaseEndpoint: s3.BaseEndpoint,
		AccessKey:    s3.AccessKey,
		SecretKey:    s3.SecretKey,
		TTL:          s3.PresignTTL,
	})
	if err != nil {
		app.logger.Warn(ctx, "attachments disabled", "err", err)
		return nil
	}
	return p
}

// Run creates the service and keeps its relay subscription alive until ctx
// is cancelled or a signal arrives.
func (app *Daemon) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting momentsd...", "user", app.config.UserID, "relay", app.config.RelayAddr)

	root, err := filex.EnsureDir(app.config.StorageRoot)
	if err != nil {
		return fmt.Errorf("storage root: %w", err)
	}

	client, err := grpcpeer.NewClient(app.config.RelayAddr, app.config.UserID, app.logger, app.dialOptions...)
	if err != nil {
		return fmt.Errorf("relay client: %w", err)
	}
	defer client.Close()

	opts := []service.Option{
		service.WithLogger(app.logger),
		service.WithPageSize(app.config.PageSize),
	}
	if p := app.presigner(ctx); p != nil {
		opts = append(opts, service.WithPresigner(p))
	}

	createCtx, cancelCreate := context.WithTimeout(ctx, app.config.DialTimeout)
	svc, err := service.Create(createCtx, root, client, opts...)
	cancelCreate()
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer func() {
		if err := svc.Destroy(); err != nil {
			app.logger.Error(context.Background(), "destroy service", "err", err)
		}
	}()

	err = retry.Do(
		func() error { return client.Subscribe(ctx) },
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			app.logger.Warn(ctx, "relay subscription lost, reconnecting", "attempt", n+1, "err", err)
		}),
	)
	if ctx.Err() != nil {
		app.logger.Info(context.Background(), "Stopping momentsd...")
		return nil
	}
	return err
}
