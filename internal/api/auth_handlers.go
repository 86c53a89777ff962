package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/result-messaging/internal/auth"
	"github.com/LeventeLantos/result-messaging/internal/model"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Token logs in with either an OAuth2 password form or a JSON body.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, r, badRequest("invalid form: "+err.Error()))
			return
		}
		req.Username, req.Password = r.PostForm.Get("username"), r.PostForm.Get("password")
		if err := h.check(&req); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tok, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	u, err := h.accounts.Me(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, _ := caller(r)
	u, err := h.accounts.UpdateProfile(r.Context(), p, auth.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) PendingUsers(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, model.RolePending)
}

func (h *Handler) AllUsers(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, "")
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, role model.Role) {
	users, err := h.accounts.Users(r.Context(), role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Approve(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User approved successfully"})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	if err := h.accounts.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}
