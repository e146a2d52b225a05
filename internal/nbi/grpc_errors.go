package nbi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/logistics-simulator/core"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

var (
	// ErrNotFound is a package-level sentinel used when an entity cannot be located.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is a package-level sentinel used for malformed request payloads.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited indicates a request was rejected by the rate limiter.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrNotConfigured indicates a service was constructed without state.
	ErrNotConfigured = errors.New("service not configured")
)

// ToStatusError maps common simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, sim.ErrRunNotFound),
		errors.Is(err, sim.ErrMissionNotFound),
		errors.Is(err, kb.ErrResourceNotFound),
		errors.Is(err, kb.ErrNodeNotFound),
		errors.Is(err, kb.ErrEdgeNotFound),
		errors.Is(err, kb.ErrElementNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, sim.ErrNoScenario),
		errors.Is(err, sim.ErrNoResult):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, sim.ErrAlreadyRunning),
		errors.Is(err, sim.ErrScenarioChanged):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, kb.ErrResourceExists),
		errors.Is(err, kb.ErrNodeExists),
		errors.Is(err, kb.ErrElementExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, ErrNotConfigured):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
