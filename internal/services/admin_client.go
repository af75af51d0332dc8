package services

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/models"
)

// AdminClient covers the authenticated admin backend. Every call except
// Login needs the admin's upstream bearer token.
type AdminClient struct {
	c *Client
}

func NewAdminClient(cfg config.Config) *AdminClient {
	return &AdminClient{c: NewClient("admin", cfg.AdminBaseURL, cfg)}
}

type loginReply struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Admin   *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"admin"`
	Name string `json:"name"`
}

// Login exchanges credentials for the upstream bearer token. A reply without
// a token is treated as a rejection.
func (a *AdminClient) Login(ctx context.Context, email, password string) (models.LoginResult, error) {
	var reply loginReply
	body := map[string]string{"email": email, "password": password}
	if err := a.c.SendJSON(ctx, http.MethodPost, "adminLogin", "", body, &reply); err != nil {
		return models.LoginResult{}, err
	}
	if reply.Token == "" {
		msg := reply.Message
		if msg == "" {
			msg = "login rejected"
		}
		return models.LoginResult{}, &UpstreamError{Service: a.c.Name(), Status: http.StatusUnauthorized, Body: msg}
	}
	res := models.LoginResult{Token: reply.Token, Email: email, Name: reply.Name}
	if reply.Admin != nil {
		if reply.Admin.Name != "" {
			res.Name = reply.Admin.Name
		}
		if reply.Admin.Email != "" {
			res.Email = reply.Admin.Email
		}
	}
	return res, nil
}

func (a *AdminClient) post(ctx context.Context, path, token string, in any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := a.c.SendJSON(ctx, http.MethodPost, path, token, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type PostInput struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

func (a *AdminClient) CreatePost(ctx context.Context, token string, p PostInput) (json.RawMessage, error) {
	return a.post(ctx, "createpost", token, p)
}

func (a *AdminClient) EditPost(ctx context.Context, token, postID string, p PostInput) (json.RawMessage, error) {
	return a.post(ctx, "editpost", token, struct {
		PostID string `json:"postId"`
		PostInput
	}{PostID: postID, PostInput: p})
}

func (a *AdminClient) DeletePost(ctx context.Context, token, postID string) (json.RawMessage, error) {
	return a.post(ctx, "deletepost", token, map[string]string{"postId": postID})
}

// ListPosts is a read, but the backend only accepts it as a POST.
func (a *AdminClient) ListPosts(ctx context.Context, token string) ([]models.Post, error) {
	var out []models.Post
	if err := a.c.SendJSON(ctx, http.MethodPost, "fetchAllPost", token, struct{}{}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Post{}
	}
	return out, nil
}

type SendPostsInput struct {
	PostIDs  []string `json:"postIds"`
	Message  string   `json:"message"`
	TopicIDs []int    `json:"topicId"`
}

// SendPostsToGroup forwards the selection to the messaging group. A nil topic
// list means every topic.
func (a *AdminClient) SendPostsToGroup(ctx context.Context, token string, in SendPostsInput) (json.RawMessage, error) {
	return a.post(ctx, "sendposttogroup", token, in)
}

func (a *AdminClient) ListExchangeRates(ctx context.Context, token string) ([]models.ExchangeRate, error) {
	var out []models.ExchangeRate
	if err := a.c.GetJSON(ctx, "getAllExchangeRates", nil, token, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.ExchangeRate{}
	}
	return out, nil
}

const ExchangeRateHashtag = "#ExchangeRates"

type ExchangeRateInput struct {
	Body    string `json:"body"`
	Source  string `json:"source"`
	Message string `json:"message,omitempty"`
}

func (a *AdminClient) CreateExchangeRate(ctx context.Context, token string, in ExchangeRateInput) (json.RawMessage, error) {
	return a.post(ctx, "createExchangeRate", token, map[string]string{
		"body":    in.Body,
		"source":  in.Source,
		"hashtag": ExchangeRateHashtag,
		"message": in.Message,
	})
}

func (a *AdminClient) UpdateExchangeRate(ctx context.Context, token, id string, in ExchangeRateInput) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{
		"exchangeId": id,
		"body":       in.Body,
		"source":     in.Source,
		"hashtag":    ExchangeRateHashtag,
	}
	if err := a.c.SendJSON(ctx, http.MethodPut, "updateExchangeRate", token, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type UserActivationInput struct {
	ID                 string `json:"id"`
	ContactInformation string `json:"contact_information"`
	ChatID             string `json:"chat_id"`
	IsActive           bool   `json:"is_active"`
}

func (a *AdminClient) SetUserActivation(ctx context.Context, token string, in UserActivationInput) (json.RawMessage, error) {
	return a.post(ctx, "userActivation", token, in)
}

type AdminInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *AdminClient) RegisterAdmin(ctx context.Context, token string, in AdminInput) (json.RawMessage, error) {
	return a.post(ctx, "registerAdmin", token, in)
}

// SetOfferActivation toggles an offer. The backend identifies the category by
// its display label.
func (a *AdminClient) SetOfferActivation(ctx context.Context, token, offerID string, active bool, categoryLabel string) (json.RawMessage, error) {
	status := 0
	if active {
		status = 1
	}
	return a.post(ctx, "offerActivation", token, map[string]any{
		"offerId":  offerID,
		"status":   status,
		"category": categoryLabel,
	})
}

func (a *AdminClient) Ping(ctx context.Context) error {
	return a.c.Ping(ctx, "getAllExchangeRates")
}
