package repository

import (
	"context"
	"testing"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
)

func TestMessageRepositoryListConversationIsScopedAndOrdered(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	msgs := []*domain.PeerMessage{
		{SenderID: 1, ReceiverID: 2, Content: "hi", CreatedAt: base},
		{SenderID: 2, ReceiverID: 1, Content: "hey", CreatedAt: base.Add(time.Minute)},
		{SenderID: 1, ReceiverID: 3, Content: "other", CreatedAt: base.Add(2 * time.Minute)},
		{SenderID: 1, ReceiverID: 2, Content: "bye", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, m := range msgs {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	page, err := repo.ListConversation(ctx, 2, 1, PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Fatalf("unexpected totals: total=%d pages=%d", page.Total, page.TotalPages)
	}
	if len(page.Items) != 2 || page.Items[0].Content != "hi" || page.Items[1].Content != "hey" {
		t.Fatalf("unexpected first page: %+v", page.Items)
	}

	page, err = repo.ListConversation(ctx, 1, 2, PageRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Content != "bye" {
		t.Fatalf("unexpected second page: %+v", page.Items)
	}
}
