package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
)

var (
	_ gocmd.Querier[ListOrderNotesMessage, []core.NoteThread]  = (*ListOrderNotesQuery)(nil)
	_ gocmd.Querier[ListMemberNotesMessage, []core.NoteThread] = (*ListMemberNotesQuery)(nil)
	_ gocmd.Querier[ListMessagesMessage, []core.Message]       = (*ListMessagesQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, core.DeliveryPage]  = (*ListDeliveriesQuery)(nil)
	_ gocmd.Querier[GetSubscriptionMessage, core.Subscription] = (*GetSubscriptionQuery)(nil)

	_ NoteReader         = (*core.Service)(nil)
	_ MessageReader      = (*core.Service)(nil)
	_ DeliveryReader     = (*core.Service)(nil)
	_ SubscriptionReader = (*core.Service)(nil)
)
