package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type NoteStore struct {
	db        *bun.DB
	repo      repository.Repository[*noteRecord]
	replyRepo repository.Repository[*noteReplyRecord]
}

func NewNoteStore(db *bun.DB) (*NoteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, noteHandlers(), "note")
	if err != nil {
		return nil, err
	}
	replyRepo, err := newRepository(db, noteReplyHandlers(), "note reply")
	if err != nil {
		return nil, err
	}
	return &NoteStore{db: db, repo: repo, replyRepo: replyRepo}, nil
}

func (s *NoteStore) GetNote(ctx context.Context, tenantID string, noteID string) (core.Note, error) {
	if s == nil || s.db == nil {
		return core.Note{}, fmt.Errorf("sqlstore: note store is not configured")
	}
	record := new(noteRecord)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.id = ?", strings.TrimSpace(noteID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.Note{}, notFound("note %q", noteID)
		}
		return core.Note{}, err
	}
	return record.toDomain(), nil
}

func (s *NoteStore) InsertNote(ctx context.Context, note core.Note) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: note store is not configured")
	}
	record := &noteRecord{
		ID:                   strings.TrimSpace(note.ID),
		TenantID:             strings.TrimSpace(note.TenantID),
		Scope:                string(note.Scope),
		MemberID:             note.MemberID,
		NoteType:             string(note.NoteType),
		Title:                note.Title,
		Body:                 note.Body,
		Status:               string(note.Status),
		CreatedByRole:        string(note.CreatedBy.Role),
		CreatedByUserID:      note.CreatedBy.UserID,
		CreatedByDisplayName: note.CreatedBy.DisplayName,
		ExternalNoteRef:      strings.TrimSpace(note.ExternalNoteRef),
		CreatedAt:            note.CreatedAt.UTC(),
	}
	if note.OrderID != nil {
		orderID := *note.OrderID
		record.OrderID = &orderID
	}
	_, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx)
	return err
}

func (s *NoteStore) ResolveRef(ctx context.Context, tenantID string, ref string) (core.Note, error) {
	if s == nil || s.db == nil {
		return core.Note{}, fmt.Errorf("sqlstore: note store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	ref = strings.TrimSpace(ref)
	var records []noteRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", tenantID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.external_note_ref = ?", ref).
				WhereOr("?TableAlias.id = ?", ref)
		}).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return core.Note{}, err
	}
	if len(records) == 0 {
		return core.Note{}, notFound("note %q", ref)
	}
	for i := range records {
		if records[i].ExternalNoteRef == ref {
			return records[i].toDomain(), nil
		}
	}
	return records[0].toDomain(), nil
}

func (s *NoteStore) InsertReply(ctx context.Context, reply core.NoteReply) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: note store is not configured")
	}
	record := &noteReplyRecord{
		ID:                   strings.TrimSpace(reply.ID),
		TenantID:             strings.TrimSpace(reply.TenantID),
		NoteID:               strings.TrimSpace(reply.NoteID),
		Body:                 reply.Body,
		CreatedByRole:        string(reply.CreatedBy.Role),
		CreatedByUserID:      reply.CreatedBy.UserID,
		CreatedByDisplayName: reply.CreatedBy.DisplayName,
		ExternalReplyRef:     strings.TrimSpace(reply.ExternalReplyRef),
		CreatedAt:            reply.CreatedAt.UTC(),
	}
	_, err := conn(ctx, s.db).NewInsert().Model(record).Exec(ctx)
	return err
}

func (s *NoteStore) ListByOrder(ctx context.Context, tenantID string, orderID int64, limit int) ([]core.Note, error) {
	return s.list(ctx, limit,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectBy("scope", "=", string(core.NoteScopeOrder)),
		selectInt64("order_id", orderID),
	)
}

func (s *NoteStore) ListByMember(ctx context.Context, tenantID string, memberID int64, limit int) ([]core.Note, error) {
	return s.list(ctx, limit,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		selectInt64("member_id", memberID),
	)
}

func (s *NoteStore) ListReplies(ctx context.Context, tenantID string, noteIDs []string) ([]core.NoteReply, error) {
	if s == nil || s.replyRepo == nil {
		return nil, fmt.Errorf("sqlstore: note store is not configured")
	}
	if len(noteIDs) == 0 {
		return []core.NoteReply{}, nil
	}
	records, _, err := s.replyRepo.List(ctx,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.note_id IN (?)", bun.In(noteIDs))
		}),
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.NoteReply, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *NoteStore) list(ctx context.Context, limit int, criteria ...repository.SelectCriteria) ([]core.Note, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: note store is not configured")
	}
	if limit <= 0 {
		return []core.Note{}, nil
	}
	criteria = append(criteria,
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
		repository.SelectPaginate(limit, 0),
	)
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Note, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (r *noteRecord) toDomain() core.Note {
	if r == nil {
		return core.Note{}
	}
	out := core.Note{
		ID:       r.ID,
		TenantID: r.TenantID,
		Scope:    core.NoteScope(r.Scope),
		MemberID: r.MemberID,
		NoteType: core.NoteType(r.NoteType),
		Title:    r.Title,
		Body:     r.Body,
		Status:   core.NoteStatus(r.Status),
		CreatedBy: core.Actor{
			Role:        core.ActorRole(r.CreatedByRole),
			UserID:      r.CreatedByUserID,
			DisplayName: r.CreatedByDisplayName,
		},
		ExternalNoteRef: r.ExternalNoteRef,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.OrderID != nil {
		orderID := *r.OrderID
		out.OrderID = &orderID
	}
	return out
}

func (r *noteReplyRecord) toDomain() core.NoteReply {
	if r == nil {
		return core.NoteReply{}
	}
	return core.NoteReply{
		ID:       r.ID,
		TenantID: r.TenantID,
		NoteID:   r.NoteID,
		Body:     r.Body,
		CreatedBy: core.Actor{
			Role:        core.ActorRole(r.CreatedByRole),
			UserID:      r.CreatedByUserID,
			DisplayName: r.CreatedByDisplayName,
		},
		ExternalReplyRef: r.ExternalReplyRef,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}
