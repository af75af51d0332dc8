package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
)

// Product and property management lives on the admin backend. Every call
// names the category by its display label.

type ProductInput struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	PictureLink string `json:"picture_link,omitempty"`
	Description string `json:"description,omitempty"`
	Details     string `json:"details,omitempty"`
}

func (a *AdminClient) AddProduct(ctx context.Context, token string, in ProductInput) (json.RawMessage, error) {
	return a.post(ctx, "addProduct", token, in)
}

// ProductEdit holds the changed fields only; nil fields are left alone.
type ProductEdit struct {
	Category      string   `json:"category"`
	ProductID     string   `json:"productId"`
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Details       *string  `json:"details,omitempty"`
	CategoryID    *string  `json:"categoryid,omitempty"`
	Prices        *float64 `json:"prices,omitempty"`
	PreviousPrice *float64 `json:"previous_price,omitempty"`
}

// FilePart is an attachment sent along with a form.
type FilePart struct {
	Name        string
	ContentType string
	Data        []byte
}

// EditProduct sends JSON, or multipart form data when a new picture is
// attached.
func (a *AdminClient) EditProduct(ctx context.Context, token string, in ProductEdit, picture *FilePart) (json.RawMessage, error) {
	if picture == nil {
		return a.post(ctx, "editProductDynamic", token, in)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{{"category", in.Category}, {"productId", in.ProductID}}
	add := func(name string, v *string) {
		if v != nil {
			fields = append(fields, [2]string{name, *v})
		}
	}
	addNum := func(name string, v *float64) {
		if v != nil {
			fields = append(fields, [2]string{name, strconv.FormatFloat(*v, 'f', -1, 64)})
		}
	}
	add("name", in.Name)
	add("description", in.Description)
	add("details", in.Details)
	add("categoryid", in.CategoryID)
	addNum("prices", in.Prices)
	addNum("previous_price", in.PreviousPrice)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := writeFilePart(mw, "file", picture.Name, picture.ContentType, bytes.NewReader(picture.Data)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := a.c.SendRaw(ctx, http.MethodPost, "editProductDynamic", mw.FormDataContentType(), token, &buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminClient) DeleteProduct(ctx context.Context, token, categoryLabel, productID string) (json.RawMessage, error) {
	return a.post(ctx, "deleteProductDynamic", token, map[string]string{
		"category":  categoryLabel,
		"productId": productID,
	})
}

// AddProductProperty creates a property name. The backend takes the name
// alone.
func (a *AdminClient) AddProductProperty(ctx context.Context, token, name string) (json.RawMessage, error) {
	return a.post(ctx, "addProductProperties", token, map[string]string{"name": name})
}

type PropertyValueInput struct {
	ProductID         string `json:"productId"`
	ProductPropertyID string `json:"productPropertyId"`
	Value             string `json:"value"`
}

func (a *AdminClient) AddPropertyValue(ctx context.Context, token string, in PropertyValueInput) (json.RawMessage, error) {
	return a.post(ctx, "addProductPropertiesValue", token, in)
}

func (a *AdminClient) EditPropertyValue(ctx context.Context, token, categoryLabel, propertyValueID, value string) (json.RawMessage, error) {
	return a.post(ctx, "editProductPropertiesValue", token, map[string]string{
		"propertyValueId": propertyValueID,
		"newValue":        value,
		"category":        categoryLabel,
	})
}

// ProductValueQuery selects product values by a single date or a range.
// Empty fields are not sent.
type ProductValueQuery struct {
	Category  string `json:"category,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

func (a *AdminClient) CalculateProductValues(ctx context.Context, token string, q ProductValueQuery) (json.RawMessage, error) {
	if q.StartDate != "" && q.EndDate != "" {
		q.Date = ""
	} else {
		q.StartDate, q.EndDate = "", ""
	}
	return a.post(ctx, "calculateProductValues", token, q)
}

// OfferFilter narrows the admin offer listing. Category uses the filter
// key, not the display label.
type OfferFilter struct {
	ProductName string `json:"productName,omitempty"`
	Status      string `json:"status,omitempty"`
	Category    string `json:"category,omitempty"`
	Page        int    `json:"page"`
	Latest      bool   `json:"latest"`
}

type OfferPage struct {
	Offers     json.RawMessage `json:"offers"`
	Pagination json.RawMessage `json:"pagination"`
}

func (a *AdminClient) FilterOffers(ctx context.Context, token string, f OfferFilter) (OfferPage, error) {
	var out OfferPage
	if err := a.c.SendJSON(ctx, http.MethodPost, "dynamicOfferFilter", token, f, &out); err != nil {
		return OfferPage{}, err
	}
	if len(out.Offers) == 0 || string(out.Offers) == "null" {
		out.Offers = json.RawMessage("[]")
	}
	if len(out.Pagination) == 0 {
		out.Pagination = json.RawMessage("null")
	}
	return out, nil
}

// IncrementViewCount records one view of a post. The backend does not ask
// for a token.
func (a *AdminClient) IncrementViewCount(ctx context.Context, postID string) (json.RawMessage, error) {
	return a.post(ctx, "incrementViewCount", "", map[string]string{"postId": postID})
}
