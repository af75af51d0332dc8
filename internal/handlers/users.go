package handlers

import (
	"net/http"
	"strings"

	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/models"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": a.nowISO(), "users": users})
}

type userActivationRequest struct {
	ID                 models.ID `json:"id"`
	ContactInformation string    `json:"contact_information"`
	ChatID             models.ID `json:"chat_id"`
	Active             *bool     `json:"active"`
}

func (a *API) SetUserActivation(w http.ResponseWriter, r *http.Request) {
	var in userActivationRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs := []validate.FieldError{}
	if _, ok := validate.ID(in.ID.String()); !ok {
		errs = append(errs, validate.FieldError{Field: "id", Description: "id is required"})
	}
	if in.Active == nil {
		errs = append(errs, validate.FieldError{Field: "active", Description: "active is required"})
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.SetUserActivation(r.Context(), upstreamToken(r), services.UserActivationInput{
		ID:                 in.ID.String(),
		ContactInformation: in.ContactInformation,
		ChatID:             in.ChatID.String(),
		IsActive:           *in.Active,
	})
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "user_activation", map[string]any{"user_id": in.ID, "active": *in.Active})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (a *API) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var in validate.AdminFields
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.Admin(in.Name, in.Email, in.Password); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.RegisterAdmin(r.Context(), upstreamToken(r), services.AdminInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
	})
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "admin_register", map[string]any{"email": strings.TrimSpace(in.Email)})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

type otpRequest struct {
	Phone  string    `json:"phone"`
	ChatID models.ID `json:"chat_id"`
}

// SendOTP starts phone verification for a user. The number is sent in its
// leading-zero local form.
func (a *API) SendOTP(w http.ResponseWriter, r *http.Request) {
	var in otpRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		writeValidation(w, []validate.FieldError{{Field: "phone", Description: "Phone number must start with 7 or 9 and be 9 digits long"}})
		return
	}
	res, err := a.users.SendOTP(r.Context(), services.OTPRequest{ContactInformation: "0" + phone, ChatID: in.ChatID.String()})
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

type otpVerifyRequest struct {
	Phone          string    `json:"phone"`
	OTP            string    `json:"otp"`
	VerificationID string    `json:"verification_id"`
	ChatID         models.ID `json:"chat_id"`
	OldPhone       string    `json:"old_phone"`
}

func (a *API) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in otpVerifyRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs := []validate.FieldError{}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		errs = append(errs, validate.FieldError{Field: "phone", Description: "Phone number must start with 7 or 9 and be 9 digits long"})
	}
	if strings.TrimSpace(in.OTP) == "" {
		errs = append(errs, validate.FieldError{Field: "otp", Description: "otp is required"})
	}
	if strings.TrimSpace(in.VerificationID) == "" {
		errs = append(errs, validate.FieldError{Field: "verification_id", Description: "verification_id is required"})
	}
	var old string
	if in.OldPhone != "" {
		p, ok := validate.Phone(in.OldPhone)
		if !ok {
			errs = append(errs, validate.FieldError{Field: "old_phone", Description: "Phone number must start with 7 or 9 and be 9 digits long"})
		}
		old = "0" + p
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.users.VerifyOTP(r.Context(), services.OTPVerification{
		ContactInformation: "0" + phone,
		OTP:                strings.TrimSpace(in.OTP),
		VerificationID:     strings.TrimSpace(in.VerificationID),
		ChatID:             in.ChatID.String(),
		IsUpdate:           old != "",
		OldNumber:          old,
	})
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}
