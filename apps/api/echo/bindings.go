package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type SuccessResponse struct {
	Success string `json:"success"`
}

// bind decodes the request into dest, reporting malformed input as a 400.
func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request: "+httpErrMessage(herr))
		}
		return errors.Wrap(err, "binding request")
	}
	return nil
}

func httpErrMessage(herr *echo.HTTPError) string {
	if msg, ok := herr.Message.(string); ok {
		return msg
	}
	return http.StatusText(herr.Code)
}

// paramID parses the `:id` route param.
func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}
