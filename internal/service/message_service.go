package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
)

const PeerMessageEvent = "peer_message"

// PeerNotifier pushes payloads to every live connection of an identity.
type PeerNotifier interface {
	Send(ctx context.Context, identityID uint, payload any) int
	IsOnline(identityID uint) bool
}

type PeerEvent struct {
	Type string             `json:"type"`
	Data domain.PeerMessage `json:"data"`
}

type Contact struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsOnline bool   `json:"is_online"`
}

type DeliveryReport struct {
	Message           domain.PeerMessage `json:"message"`
	ReceiverDelivered int                `json:"receiver_delivered"`
	SenderDelivered   int                `json:"sender_delivered"`
}

type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	tokens   *TokenService
	notifier PeerNotifier
	logger   *slog.Logger
}

func NewMessageService(messages repository.MessageRepository, users repository.UserRepository, tokens *TokenService, notifier PeerNotifier, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{messages: messages, users: users, tokens: tokens, notifier: notifier, logger: logger}
}

// Send persists the message before any delivery attempt, then pushes it to
// the receiver and echoes it to the sender's other connections.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uint, content string) (*DeliveryReport, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidArgument("message content is empty")
	}
	if senderID == receiverID {
		return nil, invalidArgument("cannot message yourself")
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("receiver does not exist")
		}
		return nil, storageErr("find receiver", err)
	}

	msg := domain.PeerMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return nil, storageErr("create message", err)
	}

	report := &DeliveryReport{Message: msg}
	if s.notifier != nil {
		event := PeerEvent{Type: PeerMessageEvent, Data: msg}
		report.ReceiverDelivered = s.notifier.Send(ctx, receiverID, event)
		report.SenderDelivered = s.notifier.Send(ctx, senderID, event)
	}
	s.logger.Debug("peer message stored",
		"message_id", msg.ID,
		"receiver_delivered", report.ReceiverDelivered,
		"sender_delivered", report.SenderDelivered,
	)
	return report, nil
}

func (s *MessageService) Conversation(ctx context.Context, userID, peerID uint, page repository.PageRequest) (repository.PageResult[domain.PeerMessage], error) {
	if _, err := s.users.FindByID(ctx, peerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return repository.PageResult[domain.PeerMessage]{}, notFound("peer does not exist")
		}
		return repository.PageResult[domain.PeerMessage]{}, storageErr("find peer", err)
	}
	res, err := s.messages.ListConversation(ctx, userID, peerID, page)
	if err != nil {
		return res, storageErr("list conversation", err)
	}
	return res, nil
}

// Contacts lists every other user. A contact counts as online when it holds
// a valid token or has a live connection.
func (s *MessageService) Contacts(ctx context.Context, userID uint) ([]Contact, error) {
	users, err := s.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	active, err := s.tokens.ActiveUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(users))
	for _, u := range users {
		_, hasToken := active[u.ID]
		online := hasToken || (s.notifier != nil && s.notifier.IsOnline(u.ID))
		out = append(out, Contact{ID: u.ID, Name: u.Name, Role: u.Role, IsOnline: online})
	}
	return out, nil
}
