package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
	TokenKey  contextKey = "token"
)

const RoleAdmin = "admin"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetActorFromContext returns the caller set by the auth middleware.
func GetActorFromContext(ctx context.Context) (Actor, bool) {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return Actor{}, false
	}
	role, _ := GetRoleFromContext(ctx)
	return Actor{UserID: userID, Role: role}, true
}

func SetUserContext(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, RoleKey, role)
	return ctx
}

func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

func SetTokenContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}
