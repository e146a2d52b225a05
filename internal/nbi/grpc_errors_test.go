package nbi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/logistics-simulator/core"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid request sentinel", err: fmt.Errorf("%w: budget", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "configuration error", err: &core.ConfigurationError{Problems: []error{core.ErrUnknownEdge}}, code: codes.InvalidArgument},
		{name: "run not found", err: fmt.Errorf("%w: %q", sim.ErrRunNotFound, "x"), code: codes.NotFound},
		{name: "catalog miss", err: kb.ErrResourceNotFound, code: codes.NotFound},
		{name: "no scenario", err: sim.ErrNoScenario, code: codes.FailedPrecondition},
		{name: "already running", err: sim.ErrAlreadyRunning, code: codes.Aborted},
		{name: "superseded", err: sim.ErrScenarioChanged, code: codes.Aborted},
		{name: "already exists", err: kb.ErrNodeExists, code: codes.AlreadyExists},
		{name: "not configured", err: ErrNotConfigured, code: codes.Unavailable},
		{name: "rate limited", err: ErrRateLimited, code: codes.ResourceExhausted},
		{name: "cancelled", err: context.Canceled, code: codes.Canceled},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
