package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/natnael6825/ecctest/internal/models"
)

var (
	rePhone       = regexp.MustCompile(`^[79][0-9]{8}$`)
	rePhoneInText = regexp.MustCompile(`(?:^|[^0-9])(?:\+?251|0)?[79][0-9]{8}(?:[^0-9]|$)`)
	reID          = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

type FieldError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

var structs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct runs the validate tags of s and reports failures under their JSON
// field names.
func Struct(s any) []FieldError {
	errs := []FieldError{}
	var verrs validator.ValidationErrors
	if err := structs.Struct(s); errors.As(err, &verrs) {
		for _, fe := range verrs {
			errs = append(errs, FieldError{Field: fe.Field(), Description: describe(fe)})
		}
	} else if err != nil {
		errs = append(errs, FieldError{Field: "body", Description: err.Error()})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "A valid email is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " must be a URL"
	case "datetime":
		return fe.Field() + " must be a date like 2006-01-02"
	case "required_with":
		return fe.Field() + " is required with " + strings.ToLower(fe.Param())
	}
	return fe.Field() + " is invalid"
}

// Phone strips one leading zero and checks the local mobile shape. It
// returns the nine digit form.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0")
	return s, rePhone.MatchString(s)
}

// ContainsPhone reports whether free text embeds something dialable.
func ContainsPhone(s string) bool {
	compact := strings.NewReplacer(" ", "", "-", "", ".", "").Replace(s)
	return rePhoneInText.MatchString(s) || rePhoneInText.MatchString(compact)
}

func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reID.MatchString(s)
}

type OfferFields struct {
	ProductName string   `json:"product_name" validate:"required"`
	OfferType   string   `json:"offer_type"`
	Quantity    float64  `json:"quantity" validate:"gt=0"`
	Measurement string   `json:"measurement"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
	Phone       string   `json:"phone_number"`
}

func Offer(o OfferFields) []FieldError {
	o.ProductName = strings.TrimSpace(o.ProductName)
	errs := Struct(o)
	switch strings.ToLower(strings.TrimSpace(o.OfferType)) {
	case "buy", "sell":
	case "":
		errs = append(errs, FieldError{Field: "offer_type", Description: "Offer type is required"})
	default:
		errs = append(errs, FieldError{Field: "offer_type", Description: "Offer type must be buy or sell"})
	}
	if o.Price != nil && *o.Price <= 0 {
		errs = append(errs, FieldError{Field: "price", Description: "Price must be greater than zero"})
	}
	if ContainsPhone(o.Description) {
		errs = append(errs, FieldError{Field: "description", Description: "Contact information is not allowed in the description"})
	}
	if o.Phone != "" {
		if _, ok := Phone(o.Phone); !ok {
			errs = append(errs, FieldError{Field: "phone_number", Description: "Phone number must start with 7 or 9 and be 9 digits long"})
		}
	}
	return errs
}

// OfferUpdate checks only the fields an update carries.
func OfferUpdate(quantity, price *float64, description *string) []FieldError {
	errs := []FieldError{}
	if quantity != nil && *quantity <= 0 {
		errs = append(errs, FieldError{Field: "quantity", Description: "Quantity must be greater than zero"})
	}
	if price != nil && *price <= 0 {
		errs = append(errs, FieldError{Field: "price", Description: "Price must be greater than zero"})
	}
	if description != nil && ContainsPhone(*description) {
		errs = append(errs, FieldError{Field: "description", Description: "Contact information is not allowed in the description"})
	}
	return errs
}

func Post(title, postType string, blocks []models.Block) []FieldError {
	errs := []FieldError{}
	if strings.TrimSpace(title) == "" {
		errs = append(errs, FieldError{Field: "title", Description: "Title is required"})
	}
	if postType != "" {
		if _, ok := models.ParsePostType(postType); !ok {
			errs = append(errs, FieldError{Field: "type", Description: "Type must be news, tender or event"})
		}
	}
	for _, b := range blocks {
		if !models.ValidBlockKind(b.Type) {
			errs = append(errs, FieldError{Field: "body", Description: "Unknown block type " + b.Type})
			break
		}
	}
	return errs
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AdminFields struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ExchangeRateFields struct {
	Body   string `json:"body" validate:"required"`
	Source string `json:"source" validate:"required"`
}

func Login(email, password string) []FieldError {
	return Struct(Credentials{Email: strings.TrimSpace(email), Password: password})
}

func Admin(name, email, password string) []FieldError {
	return Struct(AdminFields{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password})
}

func ExchangeRate(body, source string) []FieldError {
	return Struct(ExchangeRateFields{Body: strings.TrimSpace(body), Source: strings.TrimSpace(source)})
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Sniff detects the content type from the leading bytes of a file.
func Sniff(head []byte) string {
	return mimetype.Detect(head).String()
}

// Image checks an upload's sniffed content type and size.
func Image(contentType string, size, max int64) []FieldError {
	errs := []FieldError{}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !imageTypes[ct] {
		errs = append(errs, FieldError{Field: "file", Description: "Only PNG, JPEG, GIF or WebP images are accepted"})
	}
	if size <= 0 {
		errs = append(errs, FieldError{Field: "file", Description: "File is empty"})
	} else if max > 0 && size > max {
		errs = append(errs, FieldError{Field: "file", Description: "File is too large"})
	}
	return errs
}
