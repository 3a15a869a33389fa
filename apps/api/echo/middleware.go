package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/audit"
	"github.com/vigilsat/vigil/services/ratelimit"
)

var errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")

func requestLogger(logger core.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true, // let the error handler set the final status before logging
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			id, _ := identityFrom(c)
			logger.Info("request", map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			}, id)
			return nil
		},
	})
}

// rateLimit counts requests per client IP and answers 429 once the window is used up.
func rateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := limiter.Allow(c.Request().Context(), c.RealIP())
			for k, v := range d.Headers() {
				c.Response().Header().Set(k, v)
			}
			if !d.Allowed {
				return errTooManyRequests
			}
			return next(c)
		}
	}
}

// auditHook records one audit log per request made by an identified caller, once the response is written.
// Recording never blocks nor fails the request.
func auditHook(rec *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var once sync.Once
			record := func() {
				once.Do(func() {
					if id, ok := identityFrom(c); ok {
						rec.Record(newAuditLog(c, id))
					}
				})
			}
			c.Response().After(record)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			// bodiless responses (204, HEAD) never trigger After
			if c.Response().Committed {
				record()
			}
			return err
		}
	}
}

func newAuditLog(c echo.Context, id *core.Identity) audit.Log {
	req := c.Request()
	l := audit.Log{
		Action:     req.Method + " " + c.Path(),
		Resource:   auditResource(c.Path()),
		ResourceID: c.Param("id"),
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: c.Response().Status,
		IPAddress:  c.RealIP(),
		UserAgent:  req.UserAgent(),
	}
	details := map[string]interface{}{"request_id": c.Response().Header().Get(echo.HeaderXRequestID)}
	if id.Demo {
		details["demo"] = true
	} else {
		l.UserID = null.Int64From(id.ID)
	}
	if b, err := json.Marshal(details); err == nil {
		l.Details = null.JSONFrom(b)
	}
	return l
}

// auditResource returns the first path segment after /api.
func auditResource(route string) string {
	route = strings.TrimPrefix(route, "/api")
	route = strings.TrimPrefix(route, "/")
	if i := strings.IndexByte(route, '/'); i >= 0 {
		route = route[:i]
	}
	return route
}
