package sessionjwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/kv"
)

func rateDecisionForTest() rate.Decision {
	return rate.Decision{
		Allowed:    false,
		Limit:      5,
		Remaining:  0,
		RetryAfter: 90 * time.Second,
		Window:     5 * time.Minute,
	}
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	err := error(newRateLimitError(rateDecisionForTest()))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("RateLimitError must match ErrRateLimited")
	}
	if !strings.HasPrefix(err.Error(), RateLimitMessage) {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.Limit != 5 || rle.RetryAfter != 90*time.Second {
		t.Fatalf("unexpected details: %+v", rle)
	}
}

func TestStoreErrorKeepsCause(t *testing.T) {
	err := storeError(kv.ErrUnavailable)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("expected ErrStoreUnavailable")
	}
	if !strings.Contains(err.Error(), "kv: store unavailable") {
		t.Fatalf("cause missing from %q", err.Error())
	}
	if !errors.Is(storeError(nil), ErrStoreUnavailable) {
		t.Fatal("nil cause still maps to ErrStoreUnavailable")
	}
}
