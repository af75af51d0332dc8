package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/models"
)

// UserClient covers the user service, which needs no admin token.
type UserClient struct {
	c *Client
}

func NewUserClient(cfg config.Config) *UserClient {
	return &UserClient{c: NewClient("users", cfg.UserBaseURL, cfg)}
}

func (u *UserClient) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := u.c.GetJSON(ctx, "fetchAllUser", nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.User{}
	}
	return out, nil
}

// LookupUserName resolves a chat id to the user's name. A 404 means no
// match, not a failure.
func (u *UserClient) LookupUserName(ctx context.Context, chatID string) (string, bool, error) {
	var out models.UserLookupResponse
	err := u.c.GetJSON(ctx, "fetchuser", url.Values{"chat_id": {chatID}}, "", &out)
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !out.Exists || out.User == nil || out.User.Name == "" {
		return "", false, nil
	}
	return out.User.Name, true, nil
}

type OTPRequest struct {
	ContactInformation string `json:"contact_information"`
	ChatID             string `json:"chat_id"`
}

func (u *UserClient) SendOTP(ctx context.Context, in OTPRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := u.c.SendJSON(ctx, http.MethodPost, "sendOtp", "", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type OTPVerification struct {
	ContactInformation string `json:"contact_information"`
	OTP                string `json:"otp"`
	VerificationID     string `json:"verificationId"`
	ChatID             string `json:"chat_id"`
	IsUpdate           bool   `json:"is_update"`
	OldNumber          string `json:"old_number,omitempty"`
}

func (u *UserClient) VerifyOTP(ctx context.Context, in OTPVerification) (json.RawMessage, error) {
	var out json.RawMessage
	if err := u.c.SendJSON(ctx, http.MethodPost, "verifyOtp", "", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *UserClient) Ping(ctx context.Context) error {
	return u.c.Ping(ctx, "fetchAllUser")
}
