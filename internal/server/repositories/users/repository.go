// Package users declares storage for registered authors.
package users

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

type Repository interface {
	// Create returns common.ErrorAlreadyExists if the name is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns common.ErrorNotFound for unknown users.
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
}
