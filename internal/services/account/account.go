package account

import (
	"context"
	"log"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/models"
	"github.com/xelth-com/esealgo/internal/utils"
)

// Store persists accounts; *database.DB implements it
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Session is a signed-in user and the token that proves it
type Session struct {
	User  *models.User
	Token string
}

// Service handles signup, login and session lookup
type Service struct {
	store Store
	cfg   *config.Config
}

// NewService creates an account service
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs it in
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("invalid email address %q", email)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	user := &models.User{Username: username, Email: email, Password: hash}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("👤 Registered user %s", user.ID)
	return s.session(user)
}

// Login checks credentials and issues a session token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, apperr.Auth("invalid credentials")
	}
	return s.session(user)
}

// Get returns the account behind a session
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Auth("user authentication required")
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := utils.GenerateToken(user.ID, s.cfg)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate token")
	}
	return &Session{User: user, Token: token}, nil
}
