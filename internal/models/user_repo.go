package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	ProfileTable   = "profiles"
	profileColumns = "id,email,fullname,phone_number,roles,department_id,created_at,updated_at"
)

type AuthRepo interface {
	AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
}

func (su *SupabaseRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}
	return resp, nil
}

func (su *SupabaseRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return resp, nil
}

// GetUser reads the caller's profile under their own session so row level
// security applies. An empty token falls back to the service client.
func (su *SupabaseRepo) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("invalid UUID")
	}

	client := su.serviceClient
	if accessToken != "" {
		authClient, err := su.GetAuthenticatedClient(accessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create authenticated client: %w", err)
		}
		client = authClient
	}

	raw, status, err := client.From(ProfileTable).
		Select(profileColumns, "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%w", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	// Supabase returns an array even for single results
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user rows: %w", err)
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if len(users) > 1 {
		return nil, fmt.Errorf("multiple users found for ID %s", id)
	}

	return &users[0], nil
}

// ListUsersByRole finds every profile holding role, optionally limited to a department.
func (su *SupabaseRepo) ListUsersByRole(ctx context.Context, role Role, departmentID *uuid.UUID) ([]User, error) {
	query := su.serviceClient.From(ProfileTable).
		Select(profileColumns, "", false).
		Contains("roles", []string{string(role)})
	if departmentID != nil {
		query = query.Eq("department_id", departmentID.String())
	}

	raw, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s profiles: %w", role, err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user rows: %w", err)
	}
	return users, nil
}

// FindUserByEmail matches the profile email case-insensitively.
func (su *SupabaseRepo) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	raw, _, err := su.serviceClient.From(ProfileTable).
		Select(profileColumns, "", false).
		Ilike("email", email).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user rows: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("profile %s: %w", email, ErrNotFound)
	}
	return &users[0], nil
}
