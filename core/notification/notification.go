package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type Type string

const (
	TypeHandover     Type = "handover"
	TypeAttendance   Type = "attendance"
	TypeAnnouncement Type = "announcement"
)

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Notification struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		Type        Type      `json:"type"`
		Description string    `json:"description"`
		RefID       string    `json:"ref_id,omitempty"`
		IsRead      bool      `json:"is_read"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	// Recipient identifies who a notification is for. Email is optional.
	Recipient struct {
		ID    string
		Name  string
		Email string
	}

	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns the user's notifications, newest first.
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, id string) error
	}

	// Notifier records a notification for a recipient.
	Notifier interface {
		Notify(ctx context.Context, to Recipient, typ Type, refID, description string) (Notification, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Notifier = (*Service)(nil)

// NewService returns a Service. mailSvc may be nil to skip e-mail copies.
func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

// Notify stores the notification and sends an e-mail copy when the recipient has an address.
func (svc *Service) Notify(ctx context.Context, to Recipient, typ Type, refID, description string) (Notification, error) {
	n, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:      to.ID,
		Type:        typ,
		Description: description,
		RefID:       refID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if svc.mailSvc != nil && to.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: to.Name, Address: to.Email}},
			Subject:      fmt.Sprintf("%s notification", typ),
			TemplateName: "notification",
			TemplateData: struct {
				Name        string
				Description string
				RefID       string
			}{to.Name, description, refID},
		})
	}
	return n, nil
}

func (svc *Service) Query(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, unreadOnly)
}

// MarkRead marks one of the user's notifications as read. Other users' notifications are reported as not found.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead {
		return n, nil
	}
	if err = svc.repo.MarkNotificationRead(ctx, id); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification read")
	}
	n.IsRead = true
	return n, nil
}
