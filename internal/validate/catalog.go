package validate

import (
	"strings"
)

type ProductFields struct {
	Name        string `json:"name" validate:"required,max=120"`
	PictureLink string `json:"picture_link" validate:"omitempty,url"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

func Product(p ProductFields) []FieldError {
	p.Name = strings.TrimSpace(p.Name)
	p.PictureLink = strings.TrimSpace(p.PictureLink)
	return Struct(p)
}

// ProductEditFields carries only the fields being changed. At least one must
// be present.
type ProductEditFields struct {
	Name          *string  `json:"name" validate:"omitnil,min=1,max=120"`
	Description   *string  `json:"description"`
	Details       *string  `json:"details"`
	Prices        *float64 `json:"prices" validate:"omitnil,gt=0"`
	PreviousPrice *float64 `json:"previous_price" validate:"omitnil,gt=0"`
}

func ProductEdit(p ProductEditFields, hasFile bool) []FieldError {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	errs := Struct(p)
	if p.Name == nil && p.Description == nil && p.Details == nil && p.Prices == nil && p.PreviousPrice == nil && !hasFile {
		errs = append(errs, FieldError{Field: "body", Description: "Nothing to update"})
	}
	return errs
}

type PropertyFields struct {
	Name string `json:"name" validate:"required,max=120"`
}

func Property(name string) []FieldError {
	return Struct(PropertyFields{Name: strings.TrimSpace(name)})
}

type PropertyValueFields struct {
	Value string `json:"value" validate:"required,max=255"`
}

func PropertyValue(value string) []FieldError {
	return Struct(PropertyValueFields{Value: strings.TrimSpace(value)})
}

// ProductValueQuery is either a single date or a start/end range, all
// YYYY-MM-DD. The range wins when both ends are given.
type ProductValueQuery struct {
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartDate string `json:"start_date" validate:"required_with=EndDate,omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required_with=StartDate,omitempty,datetime=2006-01-02"`
}

func ProductValues(q ProductValueQuery) []FieldError {
	errs := Struct(q)
	// the layout sorts lexically
	if len(errs) == 0 && q.StartDate != "" && q.EndDate < q.StartDate {
		errs = append(errs, FieldError{Field: "end_date", Description: "end_date must not be before start_date"})
	}
	return errs
}

// OfferStatus accepts active/inactive or 1/0. Empty means any.
func OfferStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "1", "active", "true":
		return "1", true
	case "0", "inactive", "false":
		return "0", true
	}
	return "", false
}
