package location

import (
	"context"
	"errors"
	"time"
)

// Geolocation failure codes, mirroring the device location services.
const (
	CodePermissionDenied    = "permission_denied"
	CodePositionUnavailable = "position_unavailable"
	CodeTimeout             = "timeout"
)

// GeoError is a geolocation provider failure.
type GeoError struct {
	Code string
}

func (e *GeoError) Error() string {
	return e.Code
}

// Permanent reports whether the failure must not be retried automatically.
// Permission denial requires manual user action.
func (e *GeoError) Permanent() bool {
	return e.Code == CodePermissionDenied
}

// Position is a device-reported fix.
type Position struct {
	Lat      float64
	Lng      float64
	Accuracy float64 // meters
}

// AcquireOptions parameterize a position query.
type AcquireOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// Provider is the device location services collaborator. Acquiring a fix is
// inherently blocking and externally triggered, with latency up to tens of
// seconds; implementations must honor the ctx deadline.
type Provider interface {
	Position(ctx context.Context, opts AcquireOptions) (*Position, error)
}

// Callers get a bounded wait and exactly one automatic retry at reduced
// accuracy on a timeout-class failure.
const acquireTimeout = 30 * time.Second

// Acquire performs one bounded high-accuracy position query. On a
// timeout-class failure it retries exactly once at reduced accuracy,
// accepting a cached fix up to a minute old. Permission denial is terminal
// and surfaced for manual user action.
func Acquire(ctx context.Context, p Provider) (*Position, error) {
	pos, err := p.Position(ctx, AcquireOptions{
		EnableHighAccuracy: true,
		Timeout:            acquireTimeout,
	})
	if err == nil {
		return pos, nil
	}

	var gerr *GeoError
	if errors.As(err, &gerr) && gerr.Code == CodeTimeout {
		return p.Position(ctx, AcquireOptions{
			EnableHighAccuracy: false,
			Timeout:            acquireTimeout,
			MaximumAge:         time.Minute,
		})
	}
	return nil, err
}
