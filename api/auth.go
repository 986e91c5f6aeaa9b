package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const refreshPath = "/user/token/refresh/"

func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	req, err := jsonRequest(http.MethodPost, "/user/login/", payload, false)
	if err != nil {
		return LoginResponse{}, err
	}

	var resp LoginResponse
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return LoginResponse{}, err
	}
	if resp.Access == "" {
		return LoginResponse{}, fmt.Errorf("login failed: missing access token")
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, form Registration) (RegisterResponse, error) {
	req, err := jsonRequest(http.MethodPost, "/user/register/", form, false)
	if err != nil {
		return RegisterResponse{}, err
	}

	var resp RegisterResponse
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return RegisterResponse{}, err
	}
	if resp.Tokens.Access == "" || resp.Tokens.Refresh == "" {
		return RegisterResponse{}, fmt.Errorf("register failed: missing tokens")
	}
	return resp, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token. When
// the backend rotates refresh tokens the new one is returned too; otherwise
// Tokens.Refresh is empty. It is never itself retried after a 401.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (Tokens, error) {
	req, err := jsonRequest(http.MethodPost, refreshPath, map[string]string{"refresh": refreshToken}, false)
	if err != nil {
		return Tokens{}, err
	}

	var resp Tokens
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return Tokens{}, err
	}
	if resp.Access == "" {
		return Tokens{}, fmt.Errorf("refresh failed: missing access token")
	}
	return resp, nil
}

// GetProfile returns the raw user object of the authenticated account.
func (c *Client) GetProfile(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/user/profile/", auth: true})
	if err != nil {
		return nil, err
	}
	return unwrapUser(body), nil
}

// UpdateProfile sends a partial update and returns the fields the backend
// echoed back, which may be a subset of the profile.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) (json.RawMessage, error) {
	req, err := jsonRequest(http.MethodPatch, "/user_profile/my-profile/update/", fields, true)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return unwrapUser(body), nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	payload := map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}
	req, err := jsonRequest(http.MethodPost, "/user/change-password/", payload, true)
	if err != nil {
		return err
	}
	return c.doStatus(ctx, req)
}

// unwrapUser accepts both {"user": {...}} and a bare user object.
func unwrapUser(body []byte) json.RawMessage {
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		trimmed := bytes.TrimSpace(wrapped.User)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return wrapped.User
		}
	}
	return json.RawMessage(body)
}
