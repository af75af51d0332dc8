package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natnael6825/ecctest/internal/category"
	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/models"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

func (a *API) categoryClient(w http.ResponseWriter, r *http.Request) (category.Category, *services.CategoryClient, bool) {
	c, err := category.Parse(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return category.Invalid, nil, false
	}
	cc, err := a.fetcher.Client(c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return category.Invalid, nil, false
	}
	return c, cc, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, ok := validate.ID(chi.URLParam(r, name))
	if !ok {
		writeValidation(w, []validate.FieldError{{Field: name, Description: "Invalid identifier"}})
		return "", false
	}
	return id, true
}

// OfferByID looks the id up in every category. The same numeric id can exist
// in more than one category, so every match is returned.
func (a *API) OfferByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	found, failures, err := a.fetcher.FetchOfferByID(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	missing := []string{}
	for _, f := range failures {
		missing = append(missing, f.Category.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"offers":       found,
		"data_missing": missing,
	})
}

type offerRequest struct {
	ProductName  string            `json:"product_name"`
	ProductID    models.ID         `json:"productId"`
	OfferType    string            `json:"offer_type"`
	Quantity     float64           `json:"quantity"`
	Measurement  string            `json:"measurement"`
	Price        *float64          `json:"price"`
	Currency     string            `json:"currency"`
	Description  string            `json:"description"`
	UserName     string            `json:"user_name"`
	PhoneNumber  string            `json:"phone_number"`
	BusinessType *string           `json:"business_type"`
	IsFeatured   *bool             `json:"is_featured"`
	Properties   map[string]string `json:"properties"`
}

// upstreamOffer builds the body the category backends accept. Property
// values are flattened in under their lowercased names.
func (o offerRequest) upstreamOffer(c category.Category) map[string]any {
	out := make(map[string]any, 16+len(o.Properties))
	for name, v := range o.Properties {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.TrimSpace(v) == "" {
			continue
		}
		out[name] = v
	}
	currency := strings.TrimSpace(o.Currency)
	if currency == "" {
		currency = "Birr"
	}
	var phone any
	if p, ok := validate.Phone(o.PhoneNumber); ok {
		phone = "0" + p
	}
	out["product_name"] = strings.TrimSpace(o.ProductName)
	out["posted_from"] = "web"
	out["productId"] = o.ProductID
	out["description"] = o.Description
	out["quantity"] = o.Quantity
	out["measurement"] = o.Measurement
	out["price"] = o.Price
	out["poster"] = models.PosterAdmin
	out["currency"] = currency
	out["categoryName"] = c.DisplayName()
	out["offer_type"] = strings.ToLower(strings.TrimSpace(o.OfferType))
	out["user_name"] = o.UserName
	out["phone_number"] = phone
	out["chat_id"] = nil
	out["business_type"] = o.BusinessType
	out["is_featured"] = o.IsFeatured
	return out
}

func (a *API) CreateOffer(w http.ResponseWriter, r *http.Request) {
	c, cc, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	var in offerRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs := validate.Offer(validate.OfferFields{
		ProductName: in.ProductName,
		OfferType:   in.OfferType,
		Quantity:    in.Quantity,
		Measurement: in.Measurement,
		Price:       in.Price,
		Description: in.Description,
		Phone:       in.PhoneNumber,
	})
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := cc.PostOffer(r.Context(), in.upstreamOffer(c))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "offer_create", map[string]any{"category": c.String(), "product": in.ProductName})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

type offerUpdateRequest struct {
	Quantity    *float64 `json:"quantity,omitempty"`
	Measurement *string  `json:"measurement,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Description *string  `json:"description,omitempty"`
	OfferType   *string  `json:"offer_type,omitempty"`
}

func (a *API) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	c, cc, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in offerUpdateRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs := validate.OfferUpdate(in.Quantity, in.Price, in.Description)
	if in.OfferType != nil {
		if s := strings.ToLower(strings.TrimSpace(*in.OfferType)); s != "buy" && s != "sell" {
			errs = append(errs, validate.FieldError{Field: "offer_type", Description: "Offer type must be buy or sell"})
		} else {
			in.OfferType = &s
		}
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	body := struct {
		OfferID string `json:"offerId"`
		offerUpdateRequest
	}{OfferID: id, offerUpdateRequest: in}
	res, err := cc.UpdateOffer(r.Context(), body)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "offer_update", map[string]any{"category": c.String(), "offer_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

type activationRequest struct {
	Active *bool `json:"active"`
}

func (a *API) SetOfferActivation(w http.ResponseWriter, r *http.Request) {
	c, _, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in activationRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Active == nil {
		writeValidation(w, []validate.FieldError{{Field: "active", Description: "active is required"}})
		return
	}
	res, err := a.admin.SetOfferActivation(r.Context(), upstreamToken(r), id, *in.Active, c.DisplayName())
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "offer_activation", map[string]any{"category": c.String(), "offer_id": id, "active": *in.Active})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (a *API) Products(w http.ResponseWriter, r *http.Request) {
	_, cc, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	res, err := cc.FetchProducts(r.Context())
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ProductProperties(w http.ResponseWriter, r *http.Request) {
	_, cc, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := cc.FetchPropertiesByProduct(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) PropertyValues(w http.ResponseWriter, r *http.Request) {
	_, cc, ok := a.categoryClient(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "propertyID")
	if !ok {
		return
	}
	res, err := cc.FetchPropertyValues(r.Context(), id, propertyID)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Categories lists the category registry along with the topic categories
// posts can be sent to. Topics are optional.
func (a *API) Categories(w http.ResponseWriter, r *http.Request) {
	type item struct {
		Category    category.Category `json:"category"`
		DisplayName string            `json:"display_name"`
		StorageKey  string            `json:"storage_key"`
		FilterKey   string            `json:"filter_key"`
	}
	items := make([]item, 0, len(category.All()))
	for _, ep := range a.registry.Endpoints() {
		c := ep.Category
		items = append(items, item{Category: c, DisplayName: c.DisplayName(), StorageKey: c.StorageKey(), FilterKey: c.FilterKey()})
	}
	resp := map[string]any{"tsISO": a.nowISO(), "categories": items, "data_missing": []string{}}
	topics, err := a.preference.Categories(r.Context())
	if err != nil {
		applog.Error(r, "", "preference_categories", err, nil)
		resp["data_missing"] = []string{"topics"}
		resp["topics"] = []any{}
	} else {
		resp["topics"] = topics
	}
	writeJSON(w, http.StatusOK, resp)
}
