package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, messageHandlers(), "message")
	if err != nil {
		return nil, err
	}
	return &MessageStore{db: db, repo: repo}, nil
}

func (s *MessageStore) InsertMessage(ctx context.Context, message core.Message) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	record := &messageRecord{
		ID:                strings.TrimSpace(message.ID),
		TenantID:          strings.TrimSpace(message.TenantID),
		MemberID:          message.MemberID,
		Channel:           string(message.Channel),
		Body:              message.Body,
		SenderRole:        string(message.Sender.Role),
		SenderUserID:      message.Sender.UserID,
		SenderDisplayName: message.Sender.DisplayName,
		ExternalRef:       strings.TrimSpace(message.ExternalMessageRef),
		CreatedAt:         message.CreatedAt.UTC(),
	}
	_, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx)
	return err
}

// ListByMember returns newest messages first. The channel "all" disables
// the channel filter.
func (s *MessageStore) ListByMember(ctx context.Context, tenantID string, memberID int64, channel string, limit int) ([]core.Message, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	if limit <= 0 {
		return []core.Message{}, nil
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		selectInt64("member_id", memberID),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if channel = strings.TrimSpace(channel); channel != "" && channel != core.MessageChannelFilterAll {
		criteria = append(criteria, repository.SelectBy("channel", "=", channel))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(records))
	for _, record := range records {
		out = append(out, core.Message{
			ID:       record.ID,
			TenantID: record.TenantID,
			MemberID: record.MemberID,
			Channel:  core.MessageChannel(record.Channel),
			Body:     record.Body,
			Sender: core.Actor{
				Role:        core.ActorRole(record.SenderRole),
				UserID:      record.SenderUserID,
				DisplayName: record.SenderDisplayName,
			},
			ExternalMessageRef: record.ExternalRef,
			CreatedAt:          record.CreatedAt.UTC(),
		})
	}
	return out, nil
}
