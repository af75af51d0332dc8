package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/natnael6825/ecctest/internal/category"
)

func productRouter(a *API) http.Handler {
	r := chi.NewRouter()
	r.Get("/offers", a.ListOffers)
	r.Post("/categories/{category}/products", a.CreateProduct)
	r.Put("/categories/{category}/products/{id}", a.EditProduct)
	r.Delete("/categories/{category}/products/{id}", a.DeleteProduct)
	r.Post("/categories/{category}/properties", a.CreateProperty)
	r.Post("/categories/{category}/products/{id}/properties/{propertyID}/values", a.CreatePropertyValue)
	r.Put("/categories/{category}/property-values/{id}", a.EditPropertyValue)
	r.Get("/product-values", a.ProductValues)
	r.Post("/posts/{id}/views", a.RecordPostView)
	return r
}

// adminRecorder keeps the last JSON body sent to each admin endpoint.
type adminRecorder struct {
	mu     sync.Mutex
	bodies map[string]map[string]any
	types  map[string]string
}

func newAdminRecorder() *adminRecorder {
	return &adminRecorder{bodies: map[string]map[string]any{}, types: map[string]string{}}
}

func (rec *adminRecorder) handler(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/Admin/")
		var body map[string]any
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		rec.mu.Lock()
		rec.bodies[name] = body
		rec.types[name] = r.Header.Get("Content-Type")
		rec.mu.Unlock()
		w.Write([]byte(reply))
	}
}

func (rec *adminRecorder) body(name string) map[string]any {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.bodies[name]
}

func TestCreateProductSendsDisplayLabel(t *testing.T) {
	up := newAdminRecorder()
	h := productRouter(testAPI(t, up.handler(`{"id":7}`)))

	rec := do(t, h, http.MethodPost, "/categories/coffee/products", map[string]string{"name": " Yirgacheffe ", "picture_link": "https://cdn.example.com/y.png"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := up.body("addProduct")
	if got["category"] != "Coffee / ቡና" || got["name"] != "Yirgacheffe" {
		t.Fatalf("upstream body = %v", got)
	}

	rec = do(t, h, http.MethodPost, "/categories/coffee/products", map[string]string{"name": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/categories/nope/products", map[string]string{"name": "x"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown category status = %d", rec.Code)
	}
}

func TestEditProductJSONAndMultipart(t *testing.T) {
	up := newAdminRecorder()
	h := productRouter(testAPI(t, up.handler(`{"message":"updated"}`)))

	rec := do(t, h, http.MethodPut, "/categories/coffee/products/4", map[string]any{"prices": 150}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := up.body("editProductDynamic")
	if got["productId"] != "4" || got["prices"] != float64(150) || got["category"] != "Coffee / ቡና" {
		t.Fatalf("upstream body = %v", got)
	}
	if _, ok := got["name"]; ok {
		t.Fatal("unchanged name must not be sent")
	}

	rec = do(t, h, http.MethodPut, "/categories/coffee/products/4", map[string]any{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty edit status = %d", rec.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "Sidamo")
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="bean.png"`)
	hdr.Set("Content-Type", "application/octet-stream")
	fw, _ := mw.CreatePart(hdr)
	fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPut, "/categories/coffee/products/4", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("multipart status = %d body=%s", rr.Code, rr.Body.String())
	}
	up.mu.Lock()
	ct := up.types["editProductDynamic"]
	up.mu.Unlock()
	if !strings.HasPrefix(ct, "multipart/form-data") {
		t.Fatalf("upstream content type = %q", ct)
	}
}

func TestEditProductRefusesNonImage(t *testing.T) {
	h := productRouter(testAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call %s", r.URL.Path)
	}))
	body, ct := multipartBody(t, "notes.pdf", []byte("%PDF-1.7\n"))
	req := httptest.NewRequest(http.MethodPut, "/categories/coffee/products/4", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeleteProductAndPropertyWrites(t *testing.T) {
	up := newAdminRecorder()
	h := productRouter(testAPI(t, up.handler(`{"message":"ok"}`)))

	if rec := do(t, h, http.MethodDelete, "/categories/grains/products/4", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := up.body("deleteProductDynamic"); got["productId"] != "4" || got["category"] != category.Grains.DisplayName() {
		t.Fatalf("delete body = %v", got)
	}

	if rec := do(t, h, http.MethodPost, "/categories/grains/properties", map[string]string{"name": "Moisture"}, nil); rec.Code != http.StatusCreated {
		t.Fatalf("property status = %d", rec.Code)
	}
	if got := up.body("addProductProperties"); got["name"] != "Moisture" {
		t.Fatalf("property body = %v", got)
	}

	if rec := do(t, h, http.MethodPost, "/categories/grains/products/4/properties/2/values", map[string]string{"value": "12%"}, nil); rec.Code != http.StatusCreated {
		t.Fatalf("value status = %d", rec.Code)
	}
	if got := up.body("addProductPropertiesValue"); got["productId"] != "4" || got["productPropertyId"] != "2" || got["value"] != "12%" {
		t.Fatalf("value body = %v", got)
	}

	if rec := do(t, h, http.MethodPut, "/categories/grains/property-values/8", map[string]string{"value": "11%"}, nil); rec.Code != http.StatusOK {
		t.Fatalf("edit value status = %d", rec.Code)
	}
	if got := up.body("editProductPropertiesValue"); got["propertyValueId"] != "8" || got["newValue"] != "11%" {
		t.Fatalf("edit value body = %v", got)
	}

	if rec := do(t, h, http.MethodPut, "/categories/grains/property-values/8", map[string]string{"value": " "}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank value status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/categories/grains/products/bad%20id", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestProductValuesQuery(t *testing.T) {
	up := newAdminRecorder()
	h := productRouter(testAPI(t, up.handler(`[{"productId":4,"value":10}]`)))

	rec := do(t, h, http.MethodGet, "/product-values?category=coffee&product_id=4&start_date=2024-02-01&end_date=2024-02-29", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := up.body("calculateProductValues")
	if got["category"] != "Coffee / ቡና" || got["productId"] != "4" || got["startDate"] != "2024-02-01" {
		t.Fatalf("upstream body = %v", got)
	}
	if values := decodeBody(t, rec)["values"].([]any); len(values) != 1 {
		t.Fatalf("values = %v", values)
	}

	if rec := do(t, h, http.MethodGet, "/product-values?start_date=2024-03-01&end_date=2024-02-01", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status = %d", rec.Code)
	}
}

func TestListOffersUsesFilterKey(t *testing.T) {
	up := newAdminRecorder()
	h := productRouter(testAPI(t, up.handler(`{"offers":[{"id":1}],"pagination":{"page":2,"totalPages":5}}`)))

	rec := do(t, h, http.MethodGet, "/offers?category=grains&status=active&page=2&latest=true&product_name=Teff", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := up.body("dynamicOfferFilter")
	if got["category"] != "GrainsAndCereals" || got["status"] != "1" || got["page"] != float64(2) || got["latest"] != true || got["productName"] != "Teff" {
		t.Fatalf("upstream body = %v", got)
	}
	body := decodeBody(t, rec)
	if len(body["offers"].([]any)) != 1 || body["pagination"].(map[string]any)["totalPages"] != float64(5) {
		t.Fatalf("body = %v", body)
	}

	if rec := do(t, h, http.MethodGet, "/offers?status=pending", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", rec.Code)
	}
}

func TestRecordPostView(t *testing.T) {
	var auth string
	h := productRouter(testAPI(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		if r.URL.Path != "/api/Admin/incrementViewCount" || !strings.Contains(string(b), `"postId":"12"`) {
			t.Errorf("unexpected call %s %s", r.URL.Path, b)
		}
		w.Write([]byte(`{"viewCount":4}`))
	}))
	rec := do(t, h, http.MethodPost, "/posts/12/views", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if auth != "" {
		t.Fatalf("authorization = %q", auth)
	}
}
