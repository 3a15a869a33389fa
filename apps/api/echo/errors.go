package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

// MySQL error numbers
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	errValidationFailed   = "validation failed"
	errInternalServer     = "internal server error"
	errDuplicateEntry     = "duplicate entry"
	errReferenceViolation = "referenced record does not exist or is in use"
)

var (
	errMissingSecret      = echo.NewHTTPError(http.StatusInternalServerError, "authentication is not configured")
	errTokenRequired      = echo.NewHTTPError(http.StatusUnauthorized, "access token required")
	errTokenExpired       = echo.NewHTTPError(http.StatusUnauthorized, "token expired")
	errInvalidToken       = echo.NewHTTPError(http.StatusForbidden, "invalid token")
	errInactiveUser       = echo.NewHTTPError(http.StatusUnauthorized, "invalid or inactive user")
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errMFARequired        = echo.NewHTTPError(http.StatusUnauthorized, "mfa code required")
	errInvalidMFACode     = echo.NewHTTPError(http.StatusUnauthorized, "invalid mfa code")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidID          = echo.NewHTTPError(http.StatusBadRequest, "invalid id")
)

// userError maps user.Service errors to their HTTP form.
func userError(err error, context string) error {
	switch errors.Cause(err) {
	case user.ErrInvalidCredentials:
		return errInvalidCredentials
	case user.ErrAccountDeactivated:
		return errAccountDeactivated
	case user.ErrMFARequired:
		return errMFARequired
	case user.ErrInvalidMFACode:
		return errInvalidMFACode
	case user.ErrInvalidResetLink, user.ErrMFANotSetUp:
		return core.NewValidationError(err)
	}
	return errors.Wrap(err, context)
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, production bool, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		code, body := classifyError(err, translator)
		fields := requestFields(ctx, code)
		id, _ := identityFrom(ctx)

		if code >= http.StatusInternalServerError {
			if _, isHTTPErr := errors.Cause(err).(*echo.HTTPError); !isHTTPErr {
				if production {
					body = echo.Map{"error": errInternalServer}
				}
				logger.Error(errInternalServer, err, fields, id)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			} else {
				logger.Error(fmt.Sprint(body["error"]), fields, id)
			}
		} else {
			fields["error"] = err.Error()
			logger.Debug("request failed", fields, id)
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			logger.Error("writing error response", err, fields)
		}
	}
}

func classifyError(err error, translator ut.Translator) (int, echo.Map) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
			origErr = herr
		}
		return origErr.Code, echo.Map{"error": fmt.Sprint(origErr.Message)}
	case validator.ValidationErrors:
		return http.StatusBadRequest, echo.Map{
			"error":  errValidationFailed,
			"fields": core.TranslateErrors(origErr, translator),
		}
	case *core.ValidationError:
		if len(origErr.Fields) == 0 {
			return http.StatusBadRequest, echo.Map{"error": origErr.Error()}
		}
		fldErrs := make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
		return http.StatusBadRequest, echo.Map{"error": errValidationFailed, "fields": fldErrs}
	case *core.NotFoundError:
		return http.StatusNotFound, echo.Map{"error": origErr.Error()}
	case *core.ConflictError:
		return http.StatusConflict, echo.Map{"error": origErr.Error()}
	case *mysql.MySQLError:
		switch origErr.Number {
		case mysqlDuplicateEntry:
			return http.StatusConflict, echo.Map{"error": errDuplicateEntry}
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return http.StatusBadRequest, echo.Map{"error": errReferenceViolation}
		}
	}
	// any other error is a server error
	return http.StatusInternalServerError, echo.Map{"error": err.Error()}
}

func requestFields(ctx echo.Context, code int) map[string]interface{} {
	req := ctx.Request()
	return map[string]interface{}{
		"method":     req.Method,
		"path":       req.URL.Path,
		"status":     code,
		"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
	}
}
