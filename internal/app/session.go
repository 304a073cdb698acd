package app

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/notebook/internal/app/component"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/sec"
)

// Session cookie names.
const (
	AccessCookie  = "notebook_access"
	RefreshCookie = "notebook_refresh"
)

// refreshCookieTTL bounds how long a browser keeps the refresh token.
const refreshCookieTTL = 30 * 24 * time.Hour

type cookieJar struct {
	secure bool
}

func (j cookieJar) cookie(name, value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     component.NotesURL,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = expires
	}
	return cookie
}

func (j cookieJar) set(c echo.Context, session backend.Session) {
	c.SetCookie(j.cookie(AccessCookie, session.AccessToken, session.ExpiresAt))
	c.SetCookie(j.cookie(RefreshCookie, session.RefreshToken, time.Now().Add(refreshCookieTTL)))
}

func (j cookieJar) clear(c echo.Context) {
	c.SetCookie(j.cookie(AccessCookie, "", time.Time{}))
	c.SetCookie(j.cookie(RefreshCookie, "", time.Time{}))
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// requireSession resolves the session from the cookies, refreshing it once
// the access token has expired. Requests without a usable session are sent to
// the login page.
func (h handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := h.resolveSession(c)
		if errors.Is(err, backend.ErrUnauthenticated) {
			h.cookies.clear(c)
			return c.Redirect(http.StatusSeeOther, component.LoginURL)
		} else if err != nil {
			h.logger.ErrorContext(c.Request().Context(), "failed to resolve session", slog.Any("error", err))
			return toHTTPError(err)
		}
		ctx := sec.WithSession(c.Request().Context(), session)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (h handler) resolveSession(c echo.Context) (backend.Session, error) {
	ctx := c.Request().Context()
	access := cookieValue(c, AccessCookie)
	refresh := cookieValue(c, RefreshCookie)

	if access != "" {
		user, err := h.backend.GetUser(ctx, access)
		if err == nil {
			return backend.Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
		} else if !errors.Is(err, backend.ErrUnauthenticated) {
			return backend.Session{}, err
		}
	}

	if refresh == "" {
		return backend.Session{}, backend.ErrUnauthenticated
	}
	session, err := h.backend.RefreshSession(ctx, refresh)
	if errors.Is(err, backend.ErrInvalidArgument) {
		// hosted auth rejects stale refresh tokens as bad requests
		return backend.Session{}, backend.ErrUnauthenticated
	} else if err != nil {
		return backend.Session{}, err
	}
	h.cookies.set(c, session)
	return session, nil
}

func (h handler) loginPage(c echo.Context) error {
	return render(c, http.StatusOK, component.LoginPage(component.LoginProps{
		CSRF: csrfToken(c),
	}))
}

func (h handler) login(c echo.Context) error {
	ctx := c.Request().Context()
	address := c.FormValue(component.FieldEmail)
	props := component.LoginProps{
		CSRF:  csrfToken(c),
		Email: address,
	}

	err := h.backend.SendMagicLink(ctx, address, h.cfg.PublicURLFor(component.ConfirmURL))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to send magic link", slog.Any("error", err))
		props.Notice = noticeFor(err)
		return render(c, statusOf(err), component.LoginPage(props))
	}

	props.Notice = component.InfoNotice(component.MessageCheckEmail)
	return render(c, http.StatusOK, component.LoginPage(props))
}

func (h handler) confirm(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := h.backend.VerifyMagicLink(ctx, c.QueryParam("token_hash"))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to verify magic link", slog.Any("error", err))
		notice := noticeFor(err)
		status := statusOf(err)
		if errors.Is(err, backend.ErrUnauthenticated) || errors.Is(err, backend.ErrInvalidArgument) {
			notice = component.ErrorNotice(component.MessageInvalidLink)
			status = http.StatusUnauthorized
		}
		return render(c, status, component.LoginPage(component.LoginProps{
			CSRF:   csrfToken(c),
			Notice: notice,
		}))
	}

	h.cookies.set(c, session)
	return c.Redirect(http.StatusSeeOther, component.NotesURL)
}

func (h handler) logout(c echo.Context) error {
	ctx := c.Request().Context()
	session, _ := sec.SessionFrom(ctx)
	if err := h.backend.SignOut(ctx, session.AccessToken); err != nil {
		h.logger.WarnContext(ctx, "failed to sign out", slog.Any("error", err))
	}
	h.cookies.clear(c)
	return c.Redirect(http.StatusSeeOther, component.LoginURL)
}
