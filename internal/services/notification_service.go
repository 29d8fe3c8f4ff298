package services

import (
	"context"
	"log/slog"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/rabbitmq"
)

// NotificationService records in-app alerts and forwards them to the
// broker when one is configured. Every failure is logged and swallowed.
type NotificationService struct {
	repo      repositories.NotificationRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewNotificationService creates a NotificationService. publisher may be nil.
func NewNotificationService(repo repositories.NotificationRepository, publisher EventPublisher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{repo: repo, publisher: publisher, logger: logger}
}

// Notify stores an alert for userID.
func (s *NotificationService) Notify(ctx context.Context, userID, orderID, title, body string) {
	if userID == "" {
		return
	}
	n := &models.Notification{UserID: userID, OrderID: orderID, Title: title, Body: body}
	if s.repo != nil {
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn("failed to store notification", slog.String("user_id", userID), slog.Any("error", err))
			return
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingNotificationCreated, n); err != nil {
			s.logger.Warn("failed to publish notification", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}

// List returns the alerts for userID, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	if s.repo == nil {
		return []models.Notification{}, nil
	}
	return s.repo.ListByUser(ctx, userID)
}
