package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/notebook/internal/app/component"
	"github.com/stolasapp/notebook/internal/app/devservice"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/backend/supabase"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/gate"
	"github.com/stolasapp/notebook/internal/observability"
	"github.com/stolasapp/notebook/internal/storage"
)

// outbox captures magic links instead of sending them.
type outbox struct {
	mu    sync.Mutex
	links map[string]string
}

func (o *outbox) SendMagicLink(_ context.Context, to, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.links == nil {
		o.links = map[string]string{}
	}
	o.links[to] = link
	return nil
}

// confirmPath returns the path and query of the last link sent to address.
func (o *outbox) confirmPath(t *testing.T, address string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	link, ok := o.links[address]
	require.True(t, ok, "no link sent to %s", address)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, component.ConfirmURL, u.Path)
	return u.RequestURI()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PublicURL = "https://notes.example.com"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, notes backend.Backend) *echo.Echo {
	t.Helper()
	secret, err := gate.New(cfg.Gate.ReferenceDigest)
	require.NoError(t, err)
	return New(cfg, slog.New(slog.DiscardHandler), notes, secret, observability.NewMetrics())
}

// newSupabaseApp serves the app against the fake hosted project.
func newSupabaseApp(t *testing.T, cfg *config.Config) (*echo.Echo, *outbox) {
	t.Helper()
	mailer := &outbox{}
	upstream := httptest.NewServer(devservice.New(devservice.Config{Mailer: mailer}))
	t.Cleanup(upstream.Close)

	client, err := supabase.New(config.Supabase{
		URL:     upstream.URL,
		AnonKey: devservice.AnonKey,
	}, slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)
	return newApp(t, cfg, client), mailer
}

// browser replays cookies between requests.
type browser struct {
	t       *testing.T
	srv     *echo.Echo
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, srv *echo.Echo) *browser {
	t.Helper()
	return &browser{t: t, srv: srv, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequestWithContext(b.t.Context(), method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, cookie := range b.cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	rec := httptest.NewRecorder()
	b.srv.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
		} else {
			b.cookies[cookie.Name] = cookie
		}
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(http.MethodGet, target, nil)
}

// submit posts form with the CSRF token issued by an earlier GET.
func (b *browser) submit(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	token, ok := b.cookies[component.FieldCSRF]
	require.True(b.t, ok, "no csrf cookie; GET a page first")
	if form == nil {
		form = url.Values{}
	}
	form.Set(component.FieldCSRF, token.Value)
	return b.do(http.MethodPost, target, form)
}

func (b *browser) login(mailer *outbox, address string) {
	b.t.Helper()
	require.Equal(b.t, http.StatusOK, b.get(component.LoginURL).Code)
	rec := b.submit(component.LoginURL, url.Values{component.FieldEmail: {address}})
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = b.get(mailer.confirmPath(b.t, address))
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(b.t, component.NotesURL, rec.Header().Get(echo.HeaderLocation))
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func TestApp_Gate(t *testing.T) {
	t.Parallel()

	srv := newApp(t, testConfig(), nil)

	tests := []struct {
		name     string
		password string
		status   int
		granted  bool
	}{
		{name: "correct password", password: "iloveyou", status: http.StatusOK, granted: true},
		{name: "empty password", password: "", status: http.StatusUnauthorized},
		{name: "wrong case", password: "ILOVEYOU", status: http.StatusUnauthorized},
		{name: "trailing space", password: "iloveyou ", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newBrowser(t, srv)

			rec := b.get(component.GateURL)
			require.Equal(t, http.StatusOK, rec.Code)
			doc := parse(t, rec)
			assert.Equal(t, 1, doc.Find("#"+component.IDGateModal).Length())
			assert.Zero(t, doc.Find("#"+component.IDGateContent).Length())

			rec = b.submit(component.GateURL, url.Values{component.FieldPassword: {tt.password}})
			assert.Equal(t, tt.status, rec.Code)
			doc = parse(t, rec)
			if tt.granted {
				assert.Equal(t, "You found it", doc.Find("#"+component.IDGateContent+" h1").Text())
				assert.Zero(t, doc.Find("#"+component.IDGateModal).Length())
				assert.Zero(t, doc.Find("[role=alert]").Length())
				return
			}
			assert.Equal(t, component.MessageIncorrectPassword, doc.Find("[role=alert]").Text())
			assert.Equal(t, 1, doc.Find("#"+component.IDGateModal).Length())
			assert.Zero(t, doc.Find("#"+component.IDGateContent).Length())
		})
	}
}

func TestApp_Gate_RequiresCSRF(t *testing.T) {
	t.Parallel()

	b := newBrowser(t, newApp(t, testConfig(), nil))
	rec := b.do(http.MethodPost, component.GateURL, url.Values{component.FieldPassword: {"iloveyou"}})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
	assert.NotContains(t, rec.Body.String(), "You found it")
}

func TestApp_Gate_CustomReference(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Gate.ReferenceDigest = strings.ToUpper(gate.Digest("hunter2"))
	cfg.Gate.Content = "**custom**"
	b := newBrowser(t, newApp(t, cfg, nil))

	b.get(component.GateURL)
	rec := b.submit(component.GateURL, url.Values{component.FieldPassword: {"iloveyou"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = b.submit(component.GateURL, url.Values{component.FieldPassword: {"hunter2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "custom", parse(t, rec).Find("#"+component.IDGateContent+" strong").Text())
}

func TestApp_StaticAndRedirects(t *testing.T) {
	t.Parallel()

	b := newBrowser(t, newApp(t, testConfig(), nil))

	rec := b.get("/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, component.NotesURL, rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/robots.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Disallow")

	rec = b.get(component.StyleURL)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_NotesFlow(t *testing.T) {
	t.Parallel()

	srv, mailer := newSupabaseApp(t, testConfig())
	b := newBrowser(t, srv)

	rec := b.get(component.NotesURL)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, component.LoginURL, rec.Header().Get(echo.HeaderLocation))

	b.get(component.LoginURL)
	rec = b.submit(component.LoginURL, url.Values{component.FieldEmail: {"you@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, component.MessageCheckEmail, parse(t, rec).Find("[role=status]").Text())

	rec = b.get(mailer.confirmPath(t, "you@example.com"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, b.cookies, AccessCookie)
	require.Contains(t, b.cookies, RefreshCookie)
	assert.True(t, b.cookies[AccessCookie].HttpOnly)
	assert.True(t, b.cookies[AccessCookie].Secure)
	assert.Equal(t, http.SameSiteLaxMode, b.cookies[AccessCookie].SameSite)

	rec = b.get(component.NotesURL)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parse(t, rec)
	assert.Equal(t, "Personal Notes", doc.Find("."+component.ClassSiteTitle).Text())
	assert.Equal(t, component.MessageNoNotes, doc.Find("."+component.ClassEmptyState).Text())

	rec = b.submit(component.NotesURL, url.Values{
		component.FieldTitle:   {"groceries"},
		component.FieldContent: {"milk\r\neggs"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, component.NotesURL, rec.Header().Get(echo.HeaderLocation))

	rec = b.submit(component.NotesURL, url.Values{
		component.FieldTitle:   {"<script>x</script>"},
		component.FieldContent: {"**not bold**"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	doc = parse(t, b.get(component.NotesURL))
	cards := doc.Find("#" + component.IDNotesList + " ." + component.ClassNote)
	require.Equal(t, 2, cards.Length())
	first := cards.First()
	assert.Equal(t, "groceries", first.Find("h3").Text())
	html, err := first.Find(".note-content").Html()
	require.NoError(t, err)
	assert.Equal(t, "<p>milk<br/>\neggs</p>", html)
	assert.Equal(t, "<script>x</script>", cards.Last().Find("h3").Text())
	assert.Equal(t, "**not bold**", cards.Last().Find(".note-content").Text())
	assert.Zero(t, doc.Find("script").Length())

	// invalid notes are rejected with the draft kept
	rec = b.submit(component.NotesURL, url.Values{
		component.FieldTitle:   {"draft"},
		component.FieldContent: {"   "},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	doc = parse(t, rec)
	assert.Equal(t, "content is required", doc.Find("[role=alert]").Text())
	assert.Equal(t, "draft", doc.Find("input[name="+component.FieldTitle+"]").AttrOr("value", ""))
	assert.Equal(t, 2, doc.Find("."+component.ClassNote).Length())

	id, ok := component.ParseNoteID(first.AttrOr(component.DataAttrNoteID, ""))
	require.True(t, ok)
	rec = b.submit(component.DeleteNoteURL(id), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = b.submit(component.DeleteNoteURL(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = b.submit(component.NotesURL+"/nope/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doc = parse(t, b.get(component.NotesURL))
	assert.Equal(t, 1, doc.Find("."+component.ClassNote).Length())

	rec = b.submit(component.LogoutURL, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, component.LoginURL, rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, b.cookies, AccessCookie)
	assert.NotContains(t, b.cookies, RefreshCookie)

	rec = b.get(component.NotesURL)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestApp_NotesIsolation(t *testing.T) {
	t.Parallel()

	srv, mailer := newSupabaseApp(t, testConfig())
	alice, bob := newBrowser(t, srv), newBrowser(t, srv)
	alice.login(mailer, "alice@example.com")
	bob.login(mailer, "bob@example.com")

	alice.get(component.NotesURL)
	rec := alice.submit(component.NotesURL, url.Values{
		component.FieldTitle:   {"private"},
		component.FieldContent: {"alice only"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	doc := parse(t, alice.get(component.NotesURL))
	id, ok := component.ParseNoteID(doc.Find("." + component.ClassNote).AttrOr(component.DataAttrNoteID, ""))
	require.True(t, ok)

	doc = parse(t, bob.get(component.NotesURL))
	assert.Zero(t, doc.Find("."+component.ClassNote).Length())
	rec = bob.submit(component.DeleteNoteURL(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doc = parse(t, alice.get(component.NotesURL))
	assert.Equal(t, 1, doc.Find("."+component.ClassNote).Length())
}

func TestApp_SessionRefresh(t *testing.T) {
	t.Parallel()

	srv, mailer := newSupabaseApp(t, testConfig())
	b := newBrowser(t, srv)
	b.login(mailer, "you@example.com")
	oldRefresh := b.cookies[RefreshCookie].Value

	// the browser dropped the expired access cookie
	delete(b.cookies, AccessCookie)
	rec := b.get(component.NotesURL)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, b.cookies, AccessCookie)
	assert.NotEqual(t, oldRefresh, b.cookies[RefreshCookie].Value)

	// a stale access token is also refreshed
	b.cookies[AccessCookie].Value = "stale"
	rec = b.get(component.NotesURL)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "stale", b.cookies[AccessCookie].Value)

	// a rotated refresh token no longer works
	b.cookies[AccessCookie].Value = "stale"
	b.cookies[RefreshCookie].Value = oldRefresh
	rec = b.get(component.NotesURL)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, component.LoginURL, rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, b.cookies, AccessCookie)
}

func TestApp_Login_Errors(t *testing.T) {
	t.Parallel()

	srv, _ := newSupabaseApp(t, testConfig())
	b := newBrowser(t, srv)

	b.get(component.LoginURL)
	rec := b.submit(component.LoginURL, url.Values{component.FieldEmail: {"not an email"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	doc := parse(t, rec)
	assert.Equal(t, "invalid email address", doc.Find("[role=alert]").Text())
	assert.Equal(t, "not an email", doc.Find("input[name="+component.FieldEmail+"]").AttrOr("value", ""))

	rec = b.get(component.ConfirmURL + "?token_hash=bogus&type=magiclink")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, component.MessageInvalidLink, parse(t, rec).Find("[role=alert]").Text())
	assert.NotContains(t, b.cookies, AccessCookie)
}

func TestApp_LocalBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DevMode = true
	cfg.Notes.RenderMarkdown = true
	cfg.Backend.Local.DBFilepath = filepath.Join(t.TempDir(), "db.sqlite")
	mailer := &outbox{}
	store, err := storage.NewDB(t.Context(), cfg, slog.New(slog.DiscardHandler), mailer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	b := newBrowser(t, newApp(t, cfg, store))
	b.login(mailer, "you@example.com")
	assert.False(t, b.cookies[AccessCookie].Secure)

	rec := b.submit(component.NotesURL, url.Values{
		component.FieldTitle:   {"todo"},
		component.FieldContent: {"- [x] **write** tests\n- [ ] ship"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	doc := parse(t, b.get(component.NotesURL))
	note := doc.Find("." + component.ClassNote)
	require.Equal(t, 1, note.Length())
	assert.Equal(t, "write", note.Find(".note-content strong").Text())
	assert.Equal(t, 2, note.Find(".note-content input[type=checkbox]").Length())
	assert.Equal(t, 1, note.Find("time").Length())
}
