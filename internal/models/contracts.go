package models

import (
	"strings"

	"github.com/natnael6825/ecctest/internal/category"
)

type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = ""
)

const (
	PosterUser  = "user"
	PosterAdmin = "admin"
)

type Offer struct {
	ID                 ID      `json:"id"`
	ProductName        string  `json:"product_name"`
	OfferType          string  `json:"offer_type"`
	Quantity           Number  `json:"quantity"`
	Measurement        string  `json:"measurement"`
	Price              *Number `json:"price"`
	Currency           string  `json:"currency,omitempty"`
	Poster             string  `json:"poster,omitempty"`
	ChatID             ID      `json:"chat_id"`
	ContactInformation string  `json:"contact_information,omitempty"`
	Description        string  `json:"description,omitempty"`
	Status             Flag    `json:"status"`
	CreatedAt          Time    `json:"createdAt"`

	// Set by the normalizer, never by the backend.
	Category category.Category `json:"-"`
}

// Side classifies the offer type case-insensitively.
func (o Offer) Side() Side {
	switch strings.ToLower(strings.TrimSpace(o.OfferType)) {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return SideUnknown
	}
}

type Interaction struct {
	ID           ID     `json:"id"`
	OfferID      ID     `json:"offerId"`
	ViewerChatID ID     `json:"viewer_chat_id"`
	CreatedAt    Time   `json:"createdAt"`
	Offer        *Offer `json:"offer"`

	Category category.Category `json:"-"`
}

// OfferRef returns the id of the offer the interaction points at, preferring
// the embedded offer.
func (i Interaction) OfferRef() ID {
	if i.Offer != nil && i.Offer.ID != "" {
		return i.Offer.ID
	}
	return i.OfferID
}

type ProductInteractionCount struct {
	ProductName      string `json:"product_name"`
	InteractionCount Number `json:"interactionCount"`
}

type User struct {
	ID                 ID     `json:"id"`
	Name               string `json:"name"`
	ChatID             ID     `json:"chat_id"`
	ContactInformation string `json:"contact_information,omitempty"`
	IsActive           Flag   `json:"is_active"`
	CreatedAt          Time   `json:"createdAt"`
}

type UserLookupResponse struct {
	Exists bool  `json:"exists"`
	User   *User `json:"user"`
}

type ExchangeRate struct {
	ID        ID     `json:"id"`
	Body      string `json:"body"`
	Source    string `json:"source"`
	Hashtag   string `json:"hashtag"`
	CreatedAt Time   `json:"createdAt"`
}

type LoginResult struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type DepStatus struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Ok           bool                 `json:"ok"`
	TsISO        string               `json:"tsISO"`
	Service      string               `json:"service"`
	Version      string               `json:"version"`
	CacheBackend string               `json:"cache_backend"`
	DepsStatus   map[string]DepStatus `json:"deps_status"`
	DataMissing  []string             `json:"data_missing"`
}
