package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (uuid.UUID, bool) {
	return appctx.GetUUID(ctx, ContextKeyUserId)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId uuid.UUID) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SetCallerInContext stores the authenticated caller for service calls.
func SetCallerInContext(ctx context.Context, userId uuid.UUID, role string) context.Context {
	ctx = SetUserIdInContext(ctx, userId)
	return SetUserRoleInContext(ctx, role)
}

// GetCallerFromContext returns the caller id and role, or a Forbidden error.
func GetCallerFromContext(ctx context.Context) (uuid.UUID, string, error) {
	id, ok := GetUserIdFromContext(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, "", ForbiddenError("authentication required")
	}
	role, _ := GetUserRoleFromContext(ctx)
	return id, role, nil
}
