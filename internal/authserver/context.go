package authserver

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxUserName
	ctxRoles
)

func WithIdentity(ctx context.Context, userID, userName string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxUserName, userName)
	ctx = context.WithValue(ctx, ctxRoles, roles)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxUserID).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func UserName(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxUserName).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_name not in context")
}

func HeldRoles(ctx context.Context) ([]string, error) {
	if r, ok := ctx.Value(ctxRoles).([]string); ok {
		return r, nil
	}
	return nil, errors.New("roles not in context")
}
