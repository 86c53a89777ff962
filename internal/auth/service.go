package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
)

type Claims struct {
	Role model.Role `json:"role"`
	UID  string     `json:"uid"`
	jwt.RegisteredClaims
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Service struct {
	users  repo.UserRepository
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

func NewService(users repo.UserRepository, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register creates a user awaiting admin approval.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.Create(ctx, model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         model.RolePending,
	})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Token{}, ErrInvalidCredentials
	}
	if u.Role == model.RolePending {
		return Token{}, ErrPendingApproval
	}
	return s.IssueToken(u)
}

func (s *Service) IssueToken(u model.User) (Token, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		UID:  u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer"}, nil
}

func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a bearer token to the current state of its user, so
// role changes and deletions apply before the token expires.
func (s *Service) Authenticate(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return Principal{}, err
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// SeedAdmin creates the admin account, or promotes it when it already exists.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) error {
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == model.RoleAdmin {
			return nil
		}
		s.logger.Info("promoting existing user to admin", "email", u.Email)
		return s.users.UpdateRole(ctx, u.ID, model.RoleAdmin)
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}

	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	u, err = s.users.Create(ctx, model.User{Email: email, PasswordHash: hash, FullName: "Administrator", Role: model.RoleAdmin})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin user created", "email", u.Email)
	return nil
}

func (s *Service) Me(ctx context.Context, p Principal) (model.User, error) {
	return s.users.GetByID(ctx, p.UserID)
}

// ProfileUpdate holds optional changes; empty fields are left as they are.
type ProfileUpdate struct {
	Email    string
	FullName string
	Password string
}

func (s *Service) UpdateProfile(ctx context.Context, p Principal, in ProfileUpdate) (model.User, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return model.User{}, err
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.FullName != "" {
		u.FullName = strings.TrimSpace(in.FullName)
	}
	if in.Password != "" {
		if u.PasswordHash, err = s.hash(in.Password); err != nil {
			return model.User{}, err
		}
	}
	return s.users.Update(ctx, u)
}

func (s *Service) Users(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.users.List(ctx, role)
}

func (s *Service) Approve(ctx context.Context, id string) error {
	if err := s.users.UpdateRole(ctx, id, model.RoleApproved); err != nil {
		return err
	}
	s.logger.Info("user approved", "user_id", id)
	return nil
}

// Delete removes a user. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, p Principal, id string) error {
	if id == p.UserID {
		return ErrForbidden
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "by", p.UserID)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}
