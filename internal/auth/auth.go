// Package auth keeps the browser session that remembers an interactive
// upstream login, and guards the API with optional operator credentials.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const (
	cookieName = "machinebook_session"
	sessionTTL = 14 * 24 * time.Hour
)

// Sessions signs and encrypts the session cookie.
type Sessions struct {
	sc  *securecookie.SecureCookie
	now func() time.Time
}

func NewSessions(hashKey, blockKey []byte) *Sessions {
	sc := securecookie.New(hashKey, blockKey)
	// keep cookie small and secure
	sc.MaxAge(int(sessionTTL.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Sessions{sc: sc, now: time.Now}
}

type Session struct {
	Username   string
	LoggedInAt time.Time
}

type sessionValue struct {
	User string `json:"u"`
	At   int64  `json:"t"`
	V    int    `json:"v"`
}

func (s *Sessions) SetSession(w http.ResponseWriter, r *http.Request, username string) error {
	encoded, err := s.sc.Encode(cookieName, sessionValue{User: username, At: s.now().Unix(), V: 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Sessions) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Sessions) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var val sessionValue
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	if val.V != 1 || val.User == "" {
		return Session{}, false
	}
	return Session{Username: val.User, LoggedInAt: time.Unix(val.At, 0).UTC()}, true
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

// Operator is the optional basic-auth guard in front of the API.
// A zero Operator lets every request through.
type Operator struct {
	Username     string
	PasswordHash string
}

func (o Operator) Enabled() bool { return o.Username != "" && o.PasswordHash != "" }

type ctxKey string

const operatorKey ctxKey = "operator"

func (o Operator) Require(next http.Handler) http.Handler {
	if !o.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pw, ok := r.BasicAuth()
		if !ok || !secureEq(user, o.Username) || !CheckPassword(o.PasswordHash, pw) {
			w.Header().Set("WWW-Authenticate", `Basic realm="machinebook"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext returns the operator that passed the guard, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(operatorKey).(string)
	return u, ok
}

func secureEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
