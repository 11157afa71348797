package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	relay "github.com/goliatone/go-relay"
	relaycommand "github.com/goliatone/go-relay/command"
	"github.com/goliatone/go-relay/core"
	relayquery "github.com/goliatone/go-relay/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterFacade registers and subscribes every relay command and query the
// facade exposes. On failure the subscriptions made so far are released.
func RegisterFacade(
	adapter *RegistryAdapter,
	facade *relay.Facade,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: relay facade is required")
	}
	cmds := facade.Commands()
	qrys := facade.Queries()

	subs := []commanddispatcher.Subscription{}
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			for _, existing := range subs {
				existing.Unsubscribe()
			}
			subs = nil
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return register(RegisterAndSubscribe[relaycommand.CreateOrderNoteMessage](adapter, cmds.CreateOrderNote, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.CreateMemberNoteMessage](adapter, cmds.CreateMemberNote, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.CreateNoteReplyMessage](adapter, cmds.CreateNoteReply, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.CreateMessageMessage](adapter, cmds.CreateMessage, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.LinkOrderMessage](adapter, cmds.LinkOrder, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.LinkMemberMessage](adapter, cmds.LinkMember, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.TransitionOrderStatusMessage](adapter, cmds.TransitionOrderStatus, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.UpsertSubscriptionMessage](adapter, cmds.UpsertSubscription, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.SetSubscriptionEnabledMessage](adapter, cmds.SetSubscriptionEnabled, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribe[relaycommand.EmitEventMessage](adapter, cmds.EmitEvent, runnerOpts...))
		},
		func() error {
			if cmds.ProcessWebhooks == nil {
				return nil
			}
			return register(RegisterAndSubscribe[relaycommand.ProcessWebhooksMessage](adapter, cmds.ProcessWebhooks, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribeQuery[relayquery.ListOrderNotesMessage, []core.NoteThread](adapter, qrys.ListOrderNotes, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribeQuery[relayquery.ListMemberNotesMessage, []core.NoteThread](adapter, qrys.ListMemberNotes, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribeQuery[relayquery.ListMessagesMessage, []core.Message](adapter, qrys.ListMessages, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribeQuery[relayquery.ListDeliveriesMessage, core.DeliveryPage](adapter, qrys.ListDeliveries, runnerOpts...))
		},
		func() error {
			return register(RegisterAndSubscribeQuery[relayquery.GetSubscriptionMessage, core.Subscription](adapter, qrys.GetSubscription, runnerOpts...))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return subs, nil
}
