package app

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stolasapp/notebook/internal/app/component"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/content"
	"github.com/stolasapp/notebook/internal/gate"
	"github.com/stolasapp/notebook/internal/observability"
)

type handler struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend backend.Backend
	gate    *gate.Gate
	metrics *observability.Metrics
	cookies cookieJar
}

func (h handler) register(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, component.NotesURL)
	})

	e.GET(component.GateURL, h.gatePrompt)
	e.POST(component.GateURL, h.gateSubmit)

	notes := e.Group(component.NotesURL)
	notes.GET("/login", h.loginPage)
	notes.POST("/login", h.login)
	notes.GET("/auth/confirm", h.confirm)
	notes.GET("", h.listNotes, h.requireSession)
	notes.POST("", h.createNote, h.requireSession)
	notes.POST("/:id/delete", h.deleteNote, h.requireSession)
	notes.POST("/logout", h.logout, h.requireSession)
}

func (h handler) gatePrompt(c echo.Context) error {
	return render(c, http.StatusOK, component.GatePage(component.GateProps{
		CSRF: csrfToken(c),
	}))
}

// gateSubmit checks the submitted password. Attempts are not limited.
func (h handler) gateSubmit(c echo.Context) error {
	granted := h.gate.Verify(c.FormValue(component.FieldPassword))
	h.metrics.GateAttempt(granted)
	if !granted {
		return render(c, http.StatusUnauthorized, component.GatePage(component.GateProps{
			CSRF:   csrfToken(c),
			Denied: true,
		}))
	}

	revealed, err := content.Render(true, h.cfg.Gate.Content)
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, component.GatePage(component.GateProps{
		CSRF:        csrfToken(c),
		Granted:     true,
		ContentHTML: revealed,
	}))
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// toHTTPError converts an error to an Echo HTTPError with the appropriate
// status code.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	// Already an HTTP error - pass through
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	status := statusOf(err)
	if status != http.StatusInternalServerError {
		return echo.NewHTTPError(status, err.Error())
	}

	// Unknown error - return as-is for default handling
	return err
}

// statusOf maps backend errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, backend.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// noticeFor describes err for display above a form.
func noticeFor(err error) component.Notice {
	var argErr backend.ArgumentError
	switch {
	case errors.As(err, &argErr):
		return component.ErrorNotice(argErr.Reason)
	case errors.Is(err, backend.ErrRateLimited):
		return component.ErrorNotice("Too many requests, please wait a moment and try again.")
	case errors.Is(err, backend.ErrUnavailable):
		return component.ErrorNotice("The notes service is unavailable, please try again later.")
	default:
		return component.ErrorNotice("Something went wrong, please try again.")
	}
}

var renderBufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// render buffers the component so a failed render can still produce a clean
// error response.
func render(c echo.Context, status int, comp templ.Component) error {
	buf := renderBufferPool.Get().(*bytes.Buffer) //nolint:forcetypeassert // guaranteed by impl
	defer renderBufferPool.Put(buf)
	buf.Reset()

	if err := comp.Render(c.Request().Context(), buf); err != nil {
		return toHTTPError(err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}
