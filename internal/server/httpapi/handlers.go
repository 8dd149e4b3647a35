package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/services"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type tokenResponse struct {
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token"`
	Role    models.Role `json:"role"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type profileRequest struct {
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type transitionRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// decode reads a JSON body into v. A malformed body is a validation error.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", common.ErrorValidation)
		}
		return fmt.Errorf("%w: malformed JSON body", common.ErrorValidation)
	}
	return nil
}

// optional treats an absent or empty string as not supplied.
func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.gate.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: res.Token, Role: res.Role})
}

func (a *API) sendOTP(w http.ResponseWriter, r *http.Request) {
	var in otpRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.gate.IssueOTP(r.Context(), in.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to email"})
}

func (a *API) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in otpRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.gate.VerifyOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Message: "OTP verified", Token: res.Token, Role: res.Role})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, err := a.gate.ResolveSession(r.Context(), bearerToken(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in profileRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	p, err := a.gate.UpdateProfile(r.Context(), bearerToken(r), services.ProfileChange{
		Name:     in.Name,
		Email:    optional(in.Email),
		Password: optional(in.Password),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	out, err := a.requests.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getRequest(w http.ResponseWriter, r *http.Request) {
	out, err := a.requests.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) putRequest(w http.ResponseWriter, r *http.Request) {
	var in transitionRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.transition(w, r, mux.Vars(r)["id"], in)
}

// patchRequest takes the id from the body instead of the path.
func (a *API) patchRequest(w http.ResponseWriter, r *http.Request) {
	var in transitionRequest
	if err := decode(w, r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.transition(w, r, in.ID, in)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, id string, in transitionRequest) {
	out, err := a.requests.Transition(r.Context(), id, in.Status, in.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if c := claimsFrom(r.Context()); c != nil {
		a.log.Info(r.Context(), "request status changed",
			"request_id", RequestID(r.Context()), "seed_request", out.ID, "status", out.Status, "by", c.UserID)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := a.roster.ListUsers(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	out, err := a.roster.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
