package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/models"
)

// CategoryClient wraps one category backend.
type CategoryClient struct {
	cat category.Category
	c   *Client
}

func NewCategoryClient(ep category.Endpoint, cfg config.Config) *CategoryClient {
	c := NewClient(ep.Category.String(), ep.BaseURL, cfg)
	if ep.APIKey != "" {
		c = c.WithAPIKey(ep.APIKey)
	}
	return &CategoryClient{cat: ep.Category, c: c}
}

func (cc *CategoryClient) Category() category.Category { return cc.cat }

func (cc *CategoryClient) FetchAllOffers(ctx context.Context) ([]models.Offer, error) {
	var out []models.Offer
	if err := cc.c.GetJSON(ctx, "fetchAllOffers", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) FetchAllInteractions(ctx context.Context) ([]models.Interaction, error) {
	var out []models.Interaction
	if err := cc.c.GetJSON(ctx, "fetchAllInteraction", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) FetchProductInteractionCounts(ctx context.Context) ([]models.ProductInteractionCount, error) {
	var out []models.ProductInteractionCount
	if err := cc.c.GetJSON(ctx, "fetchProductInteractionCount", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOffer returns the backend's answer for one offer id as-is.
func (cc *CategoryClient) FetchOffer(ctx context.Context, offerID string) (json.RawMessage, error) {
	var out json.RawMessage
	q := url.Values{"offerId": {offerID}}
	if err := cc.c.GetJSON(ctx, "fetchOffers", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) FetchProducts(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := cc.c.GetJSON(ctx, "fetchProduct", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) FetchPropertiesByProduct(ctx context.Context, productID string) (json.RawMessage, error) {
	var out json.RawMessage
	q := url.Values{"productId": {productID}}
	if err := cc.c.GetJSON(ctx, "fetchPropertyByProduct", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) FetchPropertyValues(ctx context.Context, productID, propertyID string) (json.RawMessage, error) {
	var out json.RawMessage
	q := url.Values{"productId": {productID}, "ProductPropertyId": {propertyID}}
	if err := cc.c.GetJSON(ctx, "fetchPropertyValue", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) PostOffer(ctx context.Context, offer any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := cc.c.SendJSON(ctx, http.MethodPost, "postOffer", "", offer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) UpdateOffer(ctx context.Context, offer any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := cc.c.SendJSON(ctx, http.MethodPost, "updateOffer", "", offer, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CategoryClient) Ping(ctx context.Context) error {
	return cc.c.Ping(ctx, "fetchProduct")
}
