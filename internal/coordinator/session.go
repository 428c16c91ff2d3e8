package coordinator

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartcage-backend/internal/models"
)

var (
	// ErrPermissionDenied is returned when an anonymous caller attempts a privileged change
	ErrPermissionDenied = errors.New("permission denied: admin session required")

	// ErrInvalidPassword is returned by Login on a password mismatch
	ErrInvalidPassword = errors.New("invalid admin password")
)

// SessionState is the local view of admin ownership
type SessionState string

const (
	StateAnonymous SessionState = "anonymous"
	StateAdmin     SessionState = "admin"
)

// HashPassword returns a bcrypt hash suitable for NewSession
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Session tracks whether this instance holds the single system-wide admin slot.
// It is not safe for concurrent use; the processing loop owns it.
type Session struct {
	store        Store
	passwordHash []byte
	timeout      time.Duration

	id        string
	loginTime time.Time
}

// NewSession creates an anonymous session. An empty hash disables login.
func NewSession(store Store, passwordHash []byte, timeout time.Duration) *Session {
	return &Session{store: store, passwordHash: passwordHash, timeout: timeout}
}

func (s *Session) State() SessionState {
	if s.id == "" {
		return StateAnonymous
	}
	return StateAdmin
}

func (s *Session) IsAdmin() bool {
	return s.id != ""
}

// ID returns the held session id, empty when anonymous
func (s *Session) ID() string {
	return s.id
}

func (s *Session) LoginTime() time.Time {
	return s.loginTime
}

// Login checks the password and claims the admin slot, replacing any other admin
func (s *Session) Login(ctx context.Context, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	now := time.Now()
	record := models.AdminSession{
		SessionID: uuid.NewString(),
		LoginTime: now.Format(models.TimestampLayout),
	}
	if err := putJSON(ctx, s.store, s.timeout, KeyAdminSession, record); err != nil {
		return "", fmt.Errorf("failed to write admin session: %w", err)
	}

	s.id = record.SessionID
	s.loginTime = now
	log.Printf("Coordinator: Admin login, session %s", s.id)
	return s.id, nil
}

// Logout drops local admin state and clears the shared slot if it is still ours
func (s *Session) Logout(ctx context.Context) error {
	if s.id == "" {
		return nil
	}
	id := s.id
	s.id = ""
	s.loginTime = time.Time{}

	var current models.AdminSession
	err := getJSON(ctx, s.store, s.timeout, KeyAdminSession, &current)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read admin session: %w", err)
	}
	if current.SessionID != id {
		log.Printf("Coordinator: Admin slot already taken over, leaving it in place")
		return nil
	}

	if err := deleteKey(ctx, s.store, s.timeout, KeyAdminSession); err != nil {
		return fmt.Errorf("failed to clear admin session: %w", err)
	}
	log.Printf("Coordinator: Admin logout, session %s", id)
	return nil
}

// Poll demotes this instance to anonymous once the shared slot no longer holds its id.
// A store error leaves the local state unchanged.
func (s *Session) Poll(ctx context.Context) (demoted bool, err error) {
	if s.id == "" {
		return false, nil
	}

	var current models.AdminSession
	err = getJSON(ctx, s.store, s.timeout, KeyAdminSession, &current)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to poll admin session: %w", err)
	}
	if err == nil && current.SessionID == s.id {
		return false, nil
	}

	log.Printf("Coordinator: Admin session %s superseded, now anonymous", s.id)
	s.id = ""
	s.loginTime = time.Time{}
	return true, nil
}

// Authorize fails with ErrPermissionDenied unless this instance holds the admin slot
func (s *Session) Authorize() error {
	if s.id == "" {
		return ErrPermissionDenied
	}
	return nil
}

// AuthorizeID fails with ErrPermissionDenied unless id is the admin session this instance holds
func (s *Session) AuthorizeID(id string) error {
	if s.id == "" || subtle.ConstantTimeCompare([]byte(id), []byte(s.id)) != 1 {
		return ErrPermissionDenied
	}
	return nil
}
