package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/profilekeeper/internal/errs"
)

// fromStatus maps a gRPC error back to the errs sentinels. Codes without a
// sentinel stay wrapped as transport failures.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	var target error
	switch st.Code() {
	case codes.InvalidArgument:
		target = errs.ErrInvalidInput
	case codes.Unauthenticated:
		target = errs.ErrUnauthorized
	case codes.AlreadyExists:
		target = errs.ErrAlreadyExists
	case codes.NotFound:
		target = errs.ErrNotFound
	case codes.PermissionDenied:
		target = errs.ErrPermissionDenied
	case codes.ResourceExhausted:
		target = errs.ErrRateLimited
	case codes.Canceled:
		target = context.Canceled
	case codes.DeadlineExceeded:
		target = context.DeadlineExceeded
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %s", op, target, st.Message())
}
