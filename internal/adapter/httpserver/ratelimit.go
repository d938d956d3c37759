package httpserver

import (
	"net/netip"
	"time"

	apperrors "github.com/arjun-vegeta/QuickPoll/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// idle buckets are dropped after this long
const connectBucketExpiry = 5 * time.Minute

// newConnectLimiter throttles WebSocket connect attempts with one token
// bucket per client (see clientKey).
func newConnectLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: connectBucketExpiry,
		}),
		IdentifierExtractor: clientKey,
		DenyHandler: func(_ echo.Context, client string, _ error) error {
			return apperrors.RateLimitedError("too many connection attempts").WithContext("client", client)
		},
	})
}

// clientKey identifies IPv4 clients by address and IPv6 clients by their /64,
// which a single host usually controls. Unparseable values are used as is.
func clientKey(c echo.Context) (string, error) {
	raw := c.RealIP()
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw, nil
	}

	addr = addr.Unmap()
	if addr.Is4() {
		return addr.String(), nil
	}
	prefix, err := addr.Prefix(64)
	if err != nil {
		return raw, nil
	}
	return prefix.String(), nil
}
