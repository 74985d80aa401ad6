package middleware

import (
	"context"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

type operatorKey struct{}

type operator struct {
	subject string
	role    enums.OperatorRole
}

func operatorFrom(ctx context.Context) operator {
	if ctx == nil {
		return operator{}
	}
	op, _ := ctx.Value(operatorKey{}).(operator)
	return op
}

// OperatorFromContext returns the token subject, or "" for anonymous requests.
func OperatorFromContext(ctx context.Context) string {
	return operatorFrom(ctx).subject
}

func RoleFromContext(ctx context.Context) enums.OperatorRole {
	return operatorFrom(ctx).role
}

func WithOperator(ctx context.Context, subject string, role enums.OperatorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorKey{}, operator{subject: subject, role: role})
}
