package repository

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"task_chat_service/internal/member/domain"
)

// MemberRepository definition get Member profile
type MemberRepository interface {
	FindByMemberIDs(ctx context.Context, memberIDs []string) ([]domain.Member, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

// FindByMemberIDs batch profile lookup, missing ids are skipped
func (r *memberRepository) FindByMemberIDs(ctx context.Context, memberIDs []string) ([]domain.Member, error) {
	members := []domain.Member{}
	if len(memberIDs) == 0 {
		return members, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, member_id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(avatar_url, ''), status
		FROM member
		WHERE member_id = ANY($1)`, memberIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.MemberID, &m.FirstName, &m.LastName, &m.AvatarURL, &m.Status); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
