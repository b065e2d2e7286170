package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/core/ports"
)

type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type findUserQuery struct {
	ID   string `query:"id"`
	Name string `query:"name"`
}

type updateUserRequest struct {
	Access   string  `json:"access"`
	ID       string  `json:"id" validate:"required"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=64"`
	Password *string `json:"password" validate:"omitempty,min=1,max=256"`
}

// Find returns a user profile by id, or by name when no id is given.
//
// @Summary      Find a user
// @Tags         user
// @Produce      json
// @Param        id    query     string  false  "User id"
// @Param        name  query     string  false  "User name"
// @Success      200   {object}  Envelope{data=domain.Profile}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /user [get]
func (h *UserHandler) Find(c echo.Context) error {
	var q findUserQuery
	if err := bind(c, &q); err != nil {
		return err
	}

	profile, err := h.authService.FindUser(c.Request().Context(), q.ID, q.Name)
	if err != nil {
		return err
	}
	return ok(c, profile)
}

// Update changes the caller's own name and/or password.
//
// @Summary      Update a user
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        body  body      updateUserRequest  true  "Target id and changes"
// @Success      200   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Security     BearerAuth
// @Router       /user [post]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.UpdateUser(c.Request().Context(), ports.UpdateUserInput{
		Access:   accessToken(c, req.Access),
		ID:       req.ID,
		Name:     req.Name,
		Password: req.Password,
	})
	observeAuth("update_user", err)
	if err != nil {
		return err
	}
	return done(c)
}
