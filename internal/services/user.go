package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"watchtrack/internal/repository"
)

type UserService struct {
	store  repository.TrackingStore
	logger *logrus.Logger
}

func NewUserService(store repository.TrackingStore, logger *logrus.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// EnsureUser creates the identity row on first sight and refreshes the
// username on later ones. Authentication itself lives outside this service.
func (s *UserService) EnsureUser(ctx context.Context, userID string, username *string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	if err := s.store.EnsureUser(ctx, userID, username); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}

	s.logger.WithField("user_id", userID).Debug("User ensured")
	return nil
}
