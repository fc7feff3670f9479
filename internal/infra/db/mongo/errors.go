package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"tradepost/internal/domain/fault"
)

var errConversationMissing = fault.New(fault.NotFound, "conversation not found")

// mapStoreError collapses driver failures into the boundary categories the
// HTTP layer presents. Nothing here retries; the caller decides that.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fault.Wrap(fault.NotFound, "document not found", err)
	case mongo.IsDuplicateKeyError(err):
		return fault.Wrap(fault.AlreadyExists, "document already exists", err)
	case mongo.IsTimeout(err):
		return fault.Wrap(fault.Timeout, "document store timed out", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fault.Wrap(fault.Timeout, "document store timed out", err)
	case errors.Is(err, context.Canceled):
		return fault.Wrap(fault.Cancelled, "request cancelled", err)
	case isUnauthorized(err):
		return fault.Wrap(fault.Permission, "document store denied access", err)
	default:
		return fault.Wrap(fault.Unavailable, "document store error", err)
	}
}

// Mongo reports authorization failures with server error code 13.
func isUnauthorized(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 13
	}
	return false
}
