package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/database"
	"storefront/internal/model"
)

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ValidationError carries a message that is safe to show to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

const tokenTTL = 7 * 24 * time.Hour

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

type AuthService struct {
	db     *sql.DB
	secret []byte
}

func NewAuthService(db *sql.DB, jwtSecret string) *AuthService {
	return &AuthService{db: db, secret: []byte(jwtSecret)}
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, &ValidationError{Msg: "name must be 1 to 100 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (email, name, password_hash, role) VALUES ($1, $2, $3, $4)
		RETURNING id, email, name, role, created_at`
	row := s.db.QueryRowContext(ctx, query, email, name, hash, model.RoleUser)

	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.PasswordHash = hash

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.getUser(ctx, `SELECT id, email, name, role, address, password_hash, created_at FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, email, name, role, address, password_hash, created_at FROM users WHERE id::text = $1`, userID)
}

type ProfileUpdate struct {
	Name    *string        `json:"name"`
	Email   *string        `json:"email"`
	Address *model.Address `json:"address"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 100 {
			return nil, &ValidationError{Msg: "name must be 1 to 100 characters"}
		}
		user.Name = name
	}
	if upd.Email != nil {
		email, err := NormalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	if upd.Address != nil {
		addr := *upd.Address
		if addr.Country == "" {
			addr.Country = "United States"
		}
		user.Address = &addr
	}

	var address []byte
	if user.Address != nil {
		if address, err = json.Marshal(user.Address); err != nil {
			return nil, fmt.Errorf("encode address: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, address = $3 WHERE id::text = $4`,
		user.Name, user.Email, address, userID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *AuthService) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	var (
		user    model.User
		address []byte
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Name, &user.Role, &address, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(address) > 0 {
		user.Address = &model.Address{}
		if err := json.Unmarshal(address, user.Address); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}
	return &user, nil
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Msg: "invalid email address"}
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Msg: "Password must be at least 8 characters"}
	}
	if len(password) > maxPasswordBytes {
		return &ValidationError{Msg: "Password must be at most 72 bytes"}
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return &ValidationError{Msg: "Password must contain at least one uppercase letter"}
	case !lower:
		return &ValidationError{Msg: "Password must contain at least one lowercase letter"}
	case !digit:
		return &ValidationError{Msg: "Password must contain at least one number"}
	}
	return nil
}
