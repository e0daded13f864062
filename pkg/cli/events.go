package cli

import (
	"context"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/events"
	eventsfactory "github.com/nimburion/injurystore/pkg/events/factory"
	"github.com/nimburion/injurystore/pkg/injury"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

// PublisherFactory opens the change-event publisher; a nil publisher disables events.
type PublisherFactory func(ctx context.Context, cfg *config.Config, log logger.Logger) (events.Publisher, error)

func defaultPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) (events.Publisher, error) {
	return eventsfactory.New(ctx, cfg.Events, log)
}

// openEvents returns the store options that publish change events and the
// publisher to close afterwards. Both are empty when events are disabled.
func (a *app) openEvents(ctx context.Context, cfg *config.Config, log logger.Logger) ([]injury.Option, events.Publisher, error) {
	pub, err := a.opts.OpenPublisher(ctx, cfg, log)
	if err != nil || pub == nil {
		return nil, nil, err
	}
	format, err := events.ParseFormat(cfg.Events.Format)
	if err != nil {
		closeQuietly(log, "events", pub)
		return nil, nil, err
	}
	notifier, err := events.NewNotifier(pub, events.NotifierConfig{
		Topic:          cfg.Events.Topic,
		Format:         format,
		Service:        cfg.Service.Name,
		PublishTimeout: cfg.Events.PublishTimeout,
	}, log)
	if err != nil {
		closeQuietly(log, "events", pub)
		return nil, nil, err
	}
	log.Info("change events enabled", "events_type", cfg.Events.Type, "topic", cfg.Events.Topic, "format", format)
	return []injury.Option{injury.WithChangeHook(notifier.OnChange)}, pub, nil
}
