package app

import (
	"context"

	"nightlight/model"

	"github.com/google/uuid"
)

func (a *App) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	return a.st.ListNotifications(ctx, userID, limit)
}

func (a *App) CreateUser(ctx context.Context, name string, pushTokens []string) (model.User, error) {
	if name == "" {
		return model.User{}, &InvalidArgumentError{Msg: "user name is required"}
	}
	return a.st.CreateUser(ctx, name, pushTokens)
}

func (a *App) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	return a.st.GetUser(ctx, id)
}
