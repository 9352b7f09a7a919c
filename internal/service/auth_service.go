package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
	"github.com/malekai-gauntlet/gymdesk/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	users         repository.UserRepository
	sessionSecret string
}

func NewAuthService(users repository.UserRepository, sessionSecret string) *AuthService {
	return &AuthService{users: users, sessionSecret: sessionSecret}
}

func (a *AuthService) Register(ctx context.Context, email, firstName, lastName, password, role string) (*models.User, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	if email == "" || len(password) < 6 {
		return nil, errors.New("invalid input")
	}

	// Self-registration is only allowed for members.
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "member" {
		role = "member"
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.users.Create(ctx, email, firstName, strings.TrimSpace(lastName), role, hash)
}

func (a *AuthService) Login(ctx context.Context, email, password string) (token string, user *models.User, err error) {
	u, hash, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(hash, password) {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, u.Role, 24*time.Hour)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}
