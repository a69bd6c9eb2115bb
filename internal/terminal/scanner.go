package terminal

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Scanner obtains a biometric reference from the customer.
type Scanner interface {
	Scan(ctx context.Context) (string, error)
}

// SimulatedScanner stands in for scanner hardware: a fixed acquisition delay,
// then an opaque fingerprint reference. A real deployment substitutes a
// genuine biometric capture device here.
type SimulatedScanner struct {
	Delay time.Duration
}

func (s SimulatedScanner) Scan(ctx context.Context) (string, error) {
	delay := s.Delay
	if delay < 0 {
		delay = 0
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	raw := base64.StdEncoding.EncodeToString([]byte("fingerprint_" + uuid.NewString()))
	if len(raw) > 32 {
		raw = raw[:32]
	}
	return "fp_" + raw, nil
}
