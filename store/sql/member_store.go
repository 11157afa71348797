package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type MemberStore struct {
	db *bun.DB
}

func NewMemberStore(db *bun.DB) (*MemberStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &MemberStore{db: db}, nil
}

// Ensure creates an empty member row when none exists.
func (s *MemberStore) Ensure(ctx context.Context, tenantID string, memberID int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: member store is not configured")
	}
	now := time.Now().UTC()
	_, err := conn(ctx, s.db).NewInsert().
		Model(&memberRecord{
			TenantID:  strings.TrimSpace(tenantID),
			MemberID:  memberID,
			CreatedAt: now,
			UpdatedAt: now,
		}).
		On("CONFLICT (tenant_id, member_id) DO NOTHING").
		Exec(ctx)
	return err
}

// UpsertLink overwrites profile fields that are present on member and keeps
// the stored values for the empty ones.
func (s *MemberStore) UpsertLink(ctx context.Context, member core.Member) (core.Member, error) {
	if s == nil || s.db == nil {
		return core.Member{}, fmt.Errorf("sqlstore: member store is not configured")
	}
	member.TenantID = strings.TrimSpace(member.TenantID)
	now := member.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out core.Member
	err := NewUnitOfWork(s.db).WithinTx(ctx, func(ctx context.Context) error {
		idb := conn(ctx, s.db)
		existing := new(memberRecord)
		err := idb.NewSelect().
			Model(existing).
			Where("?TableAlias.tenant_id = ?", member.TenantID).
			Where("?TableAlias.member_id = ?", member.MemberID).
			Limit(1).
			Scan(ctx)
		if err != nil && !isNoRows(err) {
			return err
		}
		if isNoRows(err) {
			record := &memberRecord{
				TenantID:           member.TenantID,
				MemberID:           member.MemberID,
				Email:              strings.TrimSpace(member.Email),
				FirstName:          strings.TrimSpace(member.FirstName),
				LastName:           strings.TrimSpace(member.LastName),
				Phone:              strings.TrimSpace(member.Phone),
				PharmacyPatientRef: strings.TrimSpace(member.PharmacyPatientRef),
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if _, insertErr := idb.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		mergeString(&existing.Email, member.Email)
		mergeString(&existing.FirstName, member.FirstName)
		mergeString(&existing.LastName, member.LastName)
		mergeString(&existing.Phone, member.Phone)
		mergeString(&existing.PharmacyPatientRef, member.PharmacyPatientRef)
		existing.UpdatedAt = now
		if _, updateErr := idb.NewUpdate().
			Model(existing).
			Column("email", "first_name", "last_name", "phone", "pharmacy_patient_ref", "updated_at").
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Member{}, err
	}
	return out, nil
}

func (s *MemberStore) GetMember(ctx context.Context, tenantID string, memberID int64) (core.Member, error) {
	if s == nil || s.db == nil {
		return core.Member{}, fmt.Errorf("sqlstore: member store is not configured")
	}
	record := new(memberRecord)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.member_id = ?", memberID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.Member{}, notFound("member %d", memberID)
		}
		return core.Member{}, err
	}
	return record.toDomain(), nil
}

func mergeString(target *string, incoming string) {
	if value := strings.TrimSpace(incoming); value != "" {
		*target = value
	}
}

func (r *memberRecord) toDomain() core.Member {
	if r == nil {
		return core.Member{}
	}
	return core.Member{
		TenantID:           r.TenantID,
		MemberID:           r.MemberID,
		Email:              r.Email,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Phone:              r.Phone,
		PharmacyPatientRef: r.PharmacyPatientRef,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}
