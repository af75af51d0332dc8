package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natnael6825/ecctest/internal/category"
	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

func pathCategory(w http.ResponseWriter, r *http.Request) (category.Category, bool) {
	c, err := category.Parse(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return category.Invalid, false
	}
	return c, true
}

func (a *API) CreateProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	var in validate.ProductFields
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.Product(in); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	p := services.ProductInput{
		Category:    c.DisplayName(),
		Name:        strings.TrimSpace(in.Name),
		PictureLink: strings.TrimSpace(in.PictureLink),
		Description: in.Description,
		Details:     in.Details,
	}
	res, err := a.admin.AddProduct(r.Context(), upstreamToken(r), p)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "product_create", map[string]any{"category": c.String(), "name": p.Name})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

// EditProduct takes JSON, or multipart form data when the picture changes.
// Only the fields present are sent upstream.
func (a *API) EditProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var (
		in      validate.ProductEditFields
		picture *services.FilePart
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		var errs []validate.FieldError
		in, picture, errs = a.readProductForm(w, r)
		if errs != nil {
			writeValidation(w, errs)
			return
		}
	} else if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.ProductEdit(in, picture != nil); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}

	edit := services.ProductEdit{
		Category:      c.DisplayName(),
		ProductID:     id,
		Name:          in.Name,
		Description:   in.Description,
		Details:       in.Details,
		Prices:        in.Prices,
		PreviousPrice: in.PreviousPrice,
	}
	res, err := a.admin.EditProduct(r.Context(), upstreamToken(r), edit, picture)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "product_edit", map[string]any{"category": c.String(), "product_id": id, "picture": picture != nil})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

// readProductForm reads the edit fields and optional picture from a
// multipart body.
func (a *API) readProductForm(w http.ResponseWriter, r *http.Request) (validate.ProductEditFields, *services.FilePart, []validate.FieldError) {
	var in validate.ProductEditFields
	limit := a.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, nil, []validate.FieldError{{Field: "file", Description: "File is too large"}}
		}
		return in, nil, []validate.FieldError{{Field: "body", Description: "expected multipart form data"}}
	}
	defer r.MultipartForm.RemoveAll()

	text := func(name string) *string {
		if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	var errs []validate.FieldError
	number := func(name string) *float64 {
		v := text(name)
		if v == nil {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
		if err != nil {
			errs = append(errs, validate.FieldError{Field: name, Description: name + " must be a number"})
			return nil
		}
		return &f
	}
	in.Name = text("name")
	in.Description = text("description")
	in.Details = text("details")
	in.Prices = number("prices")
	in.PreviousPrice = number("previous_price")
	if errs != nil {
		return in, nil, errs
	}

	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, []validate.FieldError{{Field: "file", Description: err.Error()}}
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return in, nil, []validate.FieldError{{Field: "file", Description: err.Error()}}
	}
	contentType := validate.Sniff(data)
	if errs := validate.Image(contentType, int64(len(data)), limit); len(errs) > 0 {
		return in, nil, errs
	}
	return in, &services.FilePart{Name: filepath.Base(hdr.Filename), ContentType: contentType, Data: data}, nil
}

func (a *API) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := a.admin.DeleteProduct(r.Context(), upstreamToken(r), c.DisplayName(), id)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "product_delete", map[string]any{"category": c.String(), "product_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

// CreateProperty adds a property name. The backend keeps property names
// global, so the category only scopes the route and the audit entry.
func (a *API) CreateProperty(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	var in validate.PropertyFields
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.Property(in.Name); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	name := strings.TrimSpace(in.Name)
	res, err := a.admin.AddProductProperty(r.Context(), upstreamToken(r), name)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "property_create", map[string]any{"category": c.String(), "name": name})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

func (a *API) CreatePropertyValue(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "propertyID")
	if !ok {
		return
	}
	var in validate.PropertyValueFields
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.PropertyValue(in.Value); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	v := services.PropertyValueInput{ProductID: productID, ProductPropertyID: propertyID, Value: strings.TrimSpace(in.Value)}
	res, err := a.admin.AddPropertyValue(r.Context(), upstreamToken(r), v)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "property_value_create", map[string]any{"category": c.String(), "product_id": productID, "property_id": propertyID})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

func (a *API) EditPropertyValue(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCategory(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in validate.PropertyValueFields
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.PropertyValue(in.Value); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.EditPropertyValue(r.Context(), upstreamToken(r), c.DisplayName(), id, strings.TrimSpace(in.Value))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "property_value_edit", map[string]any{"category": c.String(), "property_value_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

// ProductValues reports computed product values for one date or a date
// range, optionally narrowed to a category and product.
func (a *API) ProductValues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vq := validate.ProductValueQuery{
		Date:      strings.TrimSpace(q.Get("date")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
	}
	if errs := validate.ProductValues(vq); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	in := services.ProductValueQuery{Date: vq.Date, StartDate: vq.StartDate, EndDate: vq.EndDate}
	c, err := categoryParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if c.Valid() {
		in.Category = c.DisplayName()
	}
	if raw := q.Get("product_id"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			writeValidation(w, []validate.FieldError{{Field: "product_id", Description: "Invalid identifier"}})
			return
		}
		in.ProductID = id
	}
	res, err := a.admin.CalculateProductValues(r.Context(), upstreamToken(r), in)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": a.nowISO(), "values": res})
}

// ListOffers is the admin offer search, paged by the backend.
func (a *API) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, ok := validate.OfferStatus(q.Get("status"))
	if !ok {
		writeValidation(w, []validate.FieldError{{Field: "status", Description: "status must be active or inactive"}})
		return
	}
	c, err := categoryParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f := services.OfferFilter{
		ProductName: strings.TrimSpace(q.Get("product_name")),
		Status:      status,
		Page:        parseIntParam(q.Get("page"), 1, 1, 10000),
	}
	if c.Valid() {
		f.Category = c.FilterKey()
	}
	f.Latest, _ = strconv.ParseBool(q.Get("latest"))
	page, err := a.admin.FilterOffers(r.Context(), upstreamToken(r), f)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": a.nowISO(), "offers": page.Offers, "pagination": page.Pagination})
}

func (a *API) RecordPostView(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := a.admin.IncrementViewCount(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}
