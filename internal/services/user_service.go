package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

type UserService struct {
	authRepo  models.AuthRepo
	directory models.Directory
}

func NewUserService(authRepo models.AuthRepo, directory models.Directory) *UserService {
	return &UserService{
		authRepo:  authRepo,
		directory: directory,
	}
}

func (us *UserService) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, invalid("invalid email format", "email")
	}
	if err := models.Validate.Var(password, "required,min=8"); err != nil {
		return nil, invalid("password must be at least 8 characters", "password")
	}
	response, err := us.authRepo.AuthenticateUser(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return response, nil
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if refreshToken == "" {
		return nil, invalid("refresh token is required", "refresh_token")
	}
	response, err := us.authRepo.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return response, nil
}

func (us *UserService) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	res, err := us.directory.GetUser(ctx, id, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return res, nil
}

// ResolveActor loads the caller's profile and turns it into the identity the
// approval gate works with.
func (us *UserService) ResolveActor(ctx context.Context, id uuid.UUID, accessToken string) (models.Actor, error) {
	user, err := us.GetUser(ctx, id, accessToken)
	if err != nil {
		return models.Actor{}, err
	}
	return user.Actor(), nil
}
