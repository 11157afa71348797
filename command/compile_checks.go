package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

var (
	_ gocmd.Commander[CreateOrderNoteMessage]        = (*CreateOrderNoteCommand)(nil)
	_ gocmd.Commander[CreateMemberNoteMessage]       = (*CreateMemberNoteCommand)(nil)
	_ gocmd.Commander[CreateNoteReplyMessage]        = (*CreateNoteReplyCommand)(nil)
	_ gocmd.Commander[CreateMessageMessage]          = (*CreateMessageCommand)(nil)
	_ gocmd.Commander[LinkOrderMessage]              = (*LinkOrderCommand)(nil)
	_ gocmd.Commander[LinkMemberMessage]             = (*LinkMemberCommand)(nil)
	_ gocmd.Commander[TransitionOrderStatusMessage]  = (*TransitionOrderStatusCommand)(nil)
	_ gocmd.Commander[UpsertSubscriptionMessage]     = (*UpsertSubscriptionCommand)(nil)
	_ gocmd.Commander[SetSubscriptionEnabledMessage] = (*SetSubscriptionEnabledCommand)(nil)
	_ gocmd.Commander[EmitEventMessage]              = (*EmitEventCommand)(nil)
	_ gocmd.Commander[ProcessWebhooksMessage]        = (*ProcessWebhooksCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
	_ BatchRunner     = (*webhooks.Dispatcher)(nil)
)
