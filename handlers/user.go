package handlers

import (
	"net/http"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

// UserHandler serves /api/admin/users.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler, constructor.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List godoc
// GET /api/admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, users)
}

// Create godoc
// POST /api/admin/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req models.CreateUserRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	user, err := h.userService.Create(r.Context(), actor, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, user)
}

// Update godoc
// PATCH /api/admin/users/{id}
// Nobody can change their own role or permissions, and only admins can
// grant admin access or touch admin accounts.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req models.UpdateUserRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	user, err := h.userService.Update(r.Context(), actor, r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

// Delete godoc
// DELETE /api/admin/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.userService.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
