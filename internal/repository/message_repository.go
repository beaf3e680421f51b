package repository

import (
	"context"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.PeerMessage) error
	ListConversation(ctx context.Context, a, b uint, page PageRequest) (PageResult[domain.PeerMessage], error)
}

type GormMessageRepository struct{ db *gorm.DB }

func NewMessageRepository(db *gorm.DB) MessageRepository { return &GormMessageRepository{db: db} }

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.PeerMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "message", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "message", "create", "success")
	return nil
}

// ListConversation pages through messages exchanged between a and b in
// send order.
func (r *GormMessageRepository) ListConversation(ctx context.Context, a, b uint, page PageRequest) (PageResult[domain.PeerMessage], error) {
	req := normalizePageRequest(page)
	result := PageResult[domain.PeerMessage]{Page: req.Page, PageSize: req.PageSize}

	base := r.db.WithContext(ctx).Model(&domain.PeerMessage{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "message", "list_conversation", "error")
		return PageResult[domain.PeerMessage]{}, err
	}
	err := base.Order("created_at ASC").Order("id ASC").
		Offset(pageOffset(req)).Limit(req.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "message", "list_conversation", "error")
		return PageResult[domain.PeerMessage]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(ctx, "message", "list_conversation", "success")
	return result, nil
}
