// Package contact はお問い合わせメッセージの受付と一覧を提供する。
// メッセージは送信せず保存のみ行う。
package contact

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/blogcore/internal/model"
	"github.com/hitoshi/blogcore/internal/repository"
	"github.com/hitoshi/blogcore/internal/security"
)

// Service はお問い合わせのサービス層。
type Service struct {
	contacts     repository.ContactRepository
	sanitizer    security.ContentSanitizer
	storeTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(contacts repository.ContactRepository, sanitizer security.ContentSanitizer, storeTimeout time.Duration) *Service {
	return &Service{
		contacts:     contacts,
		sanitizer:    sanitizer,
		storeTimeout: storeTimeout,
	}
}

// Submit はお問い合わせを保存する。全フィールドはタグを除去して保存する。
func (s *Service) Submit(ctx context.Context, name, email, subject, message string) (*model.Contact, error) {
	c := &model.Contact{
		Name:    s.sanitizer.SanitizeText(name),
		Email:   s.sanitizer.SanitizeText(email),
		Subject: s.sanitizer.SanitizeText(subject),
		Message: s.sanitizer.SanitizeText(message),
	}
	if c.Message == "" {
		return nil, model.NewValidationError(map[string]string{"message": "required"})
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, model.NewStoreError("contact.create", err)
	}

	slog.Info("お問い合わせを受け付けました",
		slog.Int64("contact_id", c.ID),
		slog.String("subject", c.Subject),
	)
	return c, nil
}

// List は全お問い合わせを新しい順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Contact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	contacts, err := s.contacts.List(ctx)
	if err != nil {
		return nil, model.NewStoreError("contact.list", err)
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	return contacts, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
