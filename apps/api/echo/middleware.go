package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maraakiz/maraakiz/core/user"
)

// chain returns base followed by extra, leaving base untouched.
func chain(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(base)+len(extra))
	return append(append(out, base...), extra...)
}

// userMiddleware loads the authenticated user and rejects deactivated accounts.
func userMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := ctx.Get(contextUserKey).(user.User)
		if ok && usr.IsAdmin {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// merkezMiddleware restricts a route to the users owning a merkez.
func merkezMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := ctx.Get(contextUserKey).(user.User)
		if ok && usr.HasMerkez() {
			return next(ctx)
		}
		return errNoMerkez
	}
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests processed, by route, method and status code.",
		}, []string{"handler", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of the HTTP requests, by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler", "method"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func metricsMiddleware(m *metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			// the error handler runs after the middleware chain: compute the code it will send
			code := ctx.Response().Status
			if err != nil {
				code, _, _ = errorResponse(err, nil)
			}
			handler, method := ctx.Path(), ctx.Request().Method
			m.requests.WithLabelValues(handler, method, strconv.Itoa(code)).Inc()
			m.duration.WithLabelValues(handler, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
