package repositories

import (
	"context"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// UserRepository reads identities from the identity provider. This service
// never writes users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
