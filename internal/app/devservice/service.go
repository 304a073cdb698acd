// Package devservice provides a fake Supabase project for development and
// testing. It implements the subset of the auth and REST endpoints used by the
// supabase backend client, holding all state in memory.
package devservice

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gofrs/uuid"

	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/email"
	"github.com/stolasapp/notebook/internal/sec"
)

// AnonKey is the only API key the fake project accepts.
const AnonKey = "dev-anon-key"

const sessionTTL = time.Hour

// Seed returns the dev service seed from the DEV_SERVICE_SEED environment
// variable, or a random value if not set.
func Seed() uint64 {
	if env := os.Getenv("DEV_SERVICE_SEED"); env != "" {
		if seed, err := strconv.ParseUint(env, 10, 64); err == nil {
			return seed
		}
	}
	return rand.Uint64() //nolint:gosec // intentionally weak random for test data
}

// Config configures a [Service].
type Config struct {
	// Seed drives generated notes.
	Seed uint64
	// NotesPerUser notes are generated for each user on first login.
	NotesPerUser int
	// Mailer delivers magic links.
	Mailer email.Sender
}

// Service is a fake Supabase project. It is safe for concurrent use.
type Service struct {
	mux     *http.ServeMux
	mailer  email.Sender
	perUser int

	mu       sync.Mutex
	faker    *gofakeit.Faker
	users    map[string]backend.User // by email
	links    map[string]string       // token hash to email
	sessions map[string]backend.User // access token to user
	refresh  map[string]backend.User // refresh token to user
	notes    []backend.Note
	nextID   int64
}

// New creates a Service. A nil Mailer logs links with the default logger.
func New(cfg Config) *Service {
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = email.LogSender{Logger: slog.Default()}
	}
	svc := &Service{
		mux:      http.NewServeMux(),
		mailer:   mailer,
		perUser:  cfg.NotesPerUser,
		faker:    gofakeit.New(cfg.Seed),
		users:    map[string]backend.User{},
		links:    map[string]string{},
		sessions: map[string]backend.User{},
		refresh:  map[string]backend.User{},
		nextID:   1,
	}
	svc.mux.HandleFunc("POST /auth/v1/otp", svc.otp)
	svc.mux.HandleFunc("POST /auth/v1/verify", svc.verify)
	svc.mux.HandleFunc("GET /auth/v1/user", svc.user)
	svc.mux.HandleFunc("POST /auth/v1/token", svc.token)
	svc.mux.HandleFunc("POST /auth/v1/logout", svc.logout)
	svc.mux.HandleFunc("GET /rest/v1/notes", svc.listNotes)
	svc.mux.HandleFunc("POST /rest/v1/notes", svc.insertNotes)
	svc.mux.HandleFunc("DELETE /rest/v1/notes", svc.deleteNotes)
	return svc
}

// ServeHTTP satisfies [http.Handler].
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != AnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Service) otp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		CreateUser bool   `json:"create_user"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	address, err := backend.NormalizeEmail(body.Email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Unable to validate email address: invalid format"})
		return
	}
	redirect, err := url.Parse(r.URL.Query().Get("redirect_to"))
	if err != nil || !redirect.IsAbs() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid redirect_to"})
		return
	}

	token := sec.NewToken()
	s.mu.Lock()
	_, known := s.users[address]
	if known || body.CreateUser {
		s.links[sec.TokenDigest(token)] = address
	}
	s.mu.Unlock()
	if !known && !body.CreateUser {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": "Signups not allowed for otp"})
		return
	}

	query := redirect.Query()
	query.Set("token_hash", sec.TokenDigest(token))
	query.Set("type", "magiclink")
	redirect.RawQuery = query.Encode()
	if err = s.mailer.SendMagicLink(r.Context(), address, redirect.String()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "Error sending magic link"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Service) verify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type      string `json:"type"`
		TokenHash string `json:"token_hash"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	address, ok := s.links[body.TokenHash]
	if !ok || body.Type != "magiclink" {
		writeJSON(w, http.StatusForbidden, map[string]string{"msg": "Email link is invalid or has expired"})
		return
	}
	delete(s.links, body.TokenHash)

	user, ok := s.users[address]
	if !ok {
		id, err := uuid.NewV4()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": err.Error()})
			return
		}
		user = backend.User{ID: id.String(), Email: address}
		s.users[address] = user
		for range s.perUser {
			s.insertLocked(user.ID, fakeNote(s.faker))
		}
	}
	writeJSON(w, http.StatusOK, s.issueLocked(user))
}

func (s *Service) user(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) token(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "refresh_token" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.refresh[body.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid Refresh Token: Refresh Token Not Found",
		})
		return
	}
	delete(s.refresh, body.RefreshToken)
	writeJSON(w, http.StatusOK, s.issueLocked(user))
}

func (s *Service) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	for token, u := range s.sessions {
		if u.ID == user.ID {
			delete(s.sessions, token)
		}
	}
	for token, u := range s.refresh {
		if u.ID == user.ID {
			delete(s.refresh, token)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) listNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	s.mu.Lock()
	notes := s.matchLocked(user, query)
	s.mu.Unlock()

	if query.Get("order") == "id.desc" {
		slices.Reverse(notes)
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Service) insertNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var rows []backend.Note
	if !readJSON(w, r, &rows) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if row.UserID != user.ID {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"code":    "42501",
				"message": `new row violates row-level security policy for table "notes"`,
			})
			return
		}
	}
	inserted := make([]backend.Note, 0, len(rows))
	for _, row := range rows {
		inserted = append(inserted, s.insertLocked(user.ID, backend.NewNote{Title: row.Title, Content: row.Content}))
	}
	respond(w, r, http.StatusCreated, inserted)
}

func (s *Service) deleteNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	deleted := s.matchLocked(user, r.URL.Query())
	s.notes = slices.DeleteFunc(s.notes, func(note backend.Note) bool {
		return slices.ContainsFunc(deleted, func(d backend.Note) bool { return d.ID == note.ID })
	})
	s.mu.Unlock()

	respond(w, r, http.StatusOK, deleted)
}

// authenticate resolves the bearer token, writing a 401 if it is unknown.
func (s *Service) authenticate(w http.ResponseWriter, r *http.Request) (backend.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	user, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT: unable to parse or verify signature"})
	}
	return user, ok
}

// matchLocked applies row-level security and the eq filters on id and
// user_id, returning matches in id order.
func (s *Service) matchLocked(user backend.User, query url.Values) []backend.Note {
	notes := []backend.Note{}
	for _, note := range s.notes {
		if note.UserID != user.ID {
			continue
		}
		if filter := query.Get("user_id"); filter != "" && filter != "eq."+note.UserID {
			continue
		}
		if filter := query.Get("id"); filter != "" && filter != "eq."+strconv.FormatInt(note.ID, 10) {
			continue
		}
		notes = append(notes, note)
	}
	return notes
}

func (s *Service) insertLocked(userID string, note backend.NewNote) backend.Note {
	row := backend.Note{
		ID:        s.nextID,
		UserID:    userID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.notes = append(s.notes, row)
	return row
}

func (s *Service) issueLocked(user backend.User) map[string]any {
	access, refresh := sec.NewToken(), sec.NewToken()
	s.sessions[access] = user
	s.refresh[refresh] = user
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int(sessionTTL.Seconds()),
		"expires_at":    time.Now().Add(sessionTTL).Unix(),
		"refresh_token": refresh,
		"user":          user,
	}
}

// respond honors the Prefer header: the affected rows are only returned when
// a representation is requested.
func respond(w http.ResponseWriter, r *http.Request, status int, rows []backend.Note) {
	if !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, rows)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": fmt.Sprintf("invalid body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
