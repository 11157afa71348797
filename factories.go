package relay

import (
	"fmt"

	"github.com/goliatone/go-relay/transport"
	"github.com/goliatone/go-relay/webhooks"
)

// NewHTTPPoster returns the outbound poster used by the dispatcher. A nil
// client falls back to a plain http.Client.
func NewHTTPPoster(client transport.HTTPDoer) *transport.Poster {
	return transport.NewPoster(client)
}

// NewDispatcher builds a dispatcher over svc's stores with every transform
// pack registered on hooks applied before opts.
func NewDispatcher(
	svc *Service,
	poster HTTPPoster,
	hooks *ExtensionHooks,
	opts ...webhooks.DispatcherOption,
) (*webhooks.Dispatcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("relay: service is required")
	}
	if poster == nil {
		poster = NewHTTPPoster(nil)
	}
	all := append(hooks.DispatcherOptions(), opts...)
	return webhooks.NewDispatcherFromService(svc, poster, all...)
}

func NewWorker(dispatcher *webhooks.Dispatcher, cfg Config) *webhooks.Runner {
	return webhooks.NewRunner(dispatcher, cfg.Webhooks)
}
