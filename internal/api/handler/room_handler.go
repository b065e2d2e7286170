package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/api/metrics"
	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

type RoomHandler struct {
	roomService ports.RoomService
}

func NewRoomHandler(roomService ports.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// PageQuery is the shared cursor query string of list endpoints.
type PageQuery struct {
	After  string `query:"after"`
	First  int    `query:"first" validate:"gte=0"`
	Before string `query:"before"`
	Last   int    `query:"last" validate:"gte=0"`
}

func (q PageQuery) page() domain.Page {
	return domain.Page{After: q.After, First: q.First, Before: q.Before, Last: q.Last}
}

type roomIDParam struct {
	ID string `param:"id"`
}

type createRoomRequest struct {
	Access      string `json:"access"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type updateRoomRequest struct {
	ID          string  `param:"id" json:"-"`
	Access      string  `json:"access"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

type deleteRequest struct {
	ID     string `param:"id" json:"-"`
	Access string `json:"access"`
}

type idResponse struct {
	ID string `json:"id"`
}

// List returns one page of rooms.
//
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Param        after   query     string  false  "Return rooms after this id"
// @Param        first   query     int     false  "Page size when paging forward"
// @Param        before  query     string  false  "Return rooms before this id"
// @Param        last    query     int     false  "Page size when paging backward"
// @Success      200     {object}  Envelope{data=[]domain.Room}
// @Failure      400     {object}  Envelope
// @Router       /rooms [get]
func (h *RoomHandler) List(c echo.Context) error {
	var q PageQuery
	if err := bind(c, &q); err != nil {
		return err
	}

	rooms, err := h.roomService.List(c.Request().Context(), q.page())
	if err != nil {
		return err
	}
	return ok(c, rooms)
}

// Find returns one room.
//
// @Summary      Get a room
// @Tags         rooms
// @Produce      json
// @Param        id   path      string  true  "Room id"
// @Success      200  {object}  Envelope{data=domain.Room}
// @Failure      404  {object}  Envelope
// @Router       /rooms/{id} [get]
func (h *RoomHandler) Find(c echo.Context) error {
	var p roomIDParam
	if err := bind(c, &p); err != nil {
		return err
	}

	room, err := h.roomService.Find(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return ok(c, room)
}

// Create opens a room owned by the caller.
//
// @Summary      Create a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        body  body      createRoomRequest  true  "Room details"
// @Success      201   {object}  Envelope{data=idResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Security     BearerAuth
// @Router       /rooms [post]
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	id, err := h.roomService.Create(c.Request().Context(), ports.CreateRoomInput{
		Access:      accessToken(c, req.Access),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}

	metrics.RoomsCreatedTotal.Inc()
	return created(c, idResponse{ID: id})
}

// Update renames or re-describes a room. Owner only.
//
// @Summary      Update a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Room id"
// @Param        body  body      updateRoomRequest  true  "Changes"
// @Success      200   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Security     BearerAuth
// @Router       /rooms/{id} [patch]
func (h *RoomHandler) Update(c echo.Context) error {
	var req updateRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.roomService.Update(c.Request().Context(), ports.UpdateRoomInput{
		Access:      accessToken(c, req.Access),
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return done(c)
}

// Delete removes a room. Owner only.
//
// @Summary      Delete a room
// @Tags         rooms
// @Produce      json
// @Param        id   path      string  true  "Room id"
// @Success      200  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Security     BearerAuth
// @Router       /rooms/{id} [delete]
func (h *RoomHandler) Delete(c echo.Context) error {
	var req deleteRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.roomService.Delete(c.Request().Context(), accessToken(c, req.Access), req.ID); err != nil {
		return err
	}
	return done(c)
}
