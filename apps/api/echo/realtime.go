package echoapi

import (
	"net/url"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
	"github.com/vigilsat/vigil/services/realtime"
)

// registerRealtimeAPI mounts the websocket endpoint. Browsers cannot set headers on
// websocket requests so the token travels in the query string.
func registerRealtimeAPI(e *echo.Echo, auth authenticator, hub *realtime.Hub, conf *core.Config) {
	if hub == nil {
		return
	}

	var origins []string
	if u, err := url.Parse(conf.FrontendBaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}

	e.GET("/ws", func(c echo.Context) error {
		id, err := wsIdentity(c, auth)
		if err != nil {
			return err
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			// Accept already wrote the failure
			return nil
		}
		hub.Serve(c.Request().Context(), conn, hub.Register(*id))
		return nil
	})
}

func wsIdentity(c echo.Context, auth authenticator) (*core.Identity, error) {
	tokenStr := c.QueryParam("token")
	if tokenStr == "" {
		tokenStr = bearerToken(c.Request())
	}
	if tokenStr == "" {
		if demo, ok := c.Get(contextDemoKey).(*core.Identity); ok {
			return demo, nil
		}
		return nil, errTokenRequired
	}
	id, _, err := auth.identify(c.Request().Context(), tokenStr)
	return id, err
}

// publish notifies the staff rooms, if realtime is enabled.
func publish(hub *realtime.Hub, event string, data interface{}, from *core.Identity) {
	if hub == nil || from == nil {
		return
	}
	hub.Publish(event, data, *from, realtime.StaffRooms...)
}

func isStaff(id *core.Identity) bool {
	return id.HasAnyRole(user.StaffRoles...)
}

// creatorID is the user recorded as the author of new content.
// Content created through the demo identity has no author.
func creatorID(id *core.Identity) int64 {
	if id.Demo {
		return 0
	}
	return id.ID
}
