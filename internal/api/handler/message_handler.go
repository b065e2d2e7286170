package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/api/metrics"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

// HeaderIdempotencyKey names the optional header that makes message creation
// safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

type MessageHandler struct {
	messageService ports.MessageService
}

func NewMessageHandler(messageService ports.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type listMessagesQuery struct {
	PageQuery
	RoomID string `query:"roomId" validate:"required"`
}

type createMessageRequest struct {
	Access  string `json:"access"`
	RoomID  string `json:"roomId" validate:"required"`
	Content string `json:"content" validate:"required,max=4096"`
}

// List returns one page of messages of a room.
//
// @Summary      List messages
// @Tags         messages
// @Produce      json
// @Param        roomId  query     string  true   "Room id"
// @Param        after   query     string  false  "Return messages after this id"
// @Param        first   query     int     false  "Page size when paging forward"
// @Param        before  query     string  false  "Return messages before this id"
// @Param        last    query     int     false  "Page size when paging backward"
// @Success      200     {object}  Envelope{data=[]domain.Message}
// @Failure      400     {object}  Envelope
// @Failure      404     {object}  Envelope
// @Router       /messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	var q listMessagesQuery
	if err := bind(c, &q); err != nil {
		return err
	}

	msgs, err := h.messageService.List(c.Request().Context(), q.RoomID, q.page())
	if err != nil {
		return err
	}
	return ok(c, msgs)
}

// Create posts a message to a room. A repeated Idempotency-Key returns the
// first message's id with 200 instead of 201.
//
// @Summary      Post a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                false  "Retry key"
// @Param        body             body      createMessageRequest  true   "Message"
// @Success      201              {object}  Envelope{data=idResponse}
// @Success      200              {object}  Envelope{data=idResponse}
// @Failure      400              {object}  Envelope
// @Failure      401              {object}  Envelope
// @Failure      404              {object}  Envelope
// @Failure      409              {object}  Envelope
// @Security     BearerAuth
// @Router       /messages [post]
func (h *MessageHandler) Create(c echo.Context) error {
	var req createMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.messageService.Create(c.Request().Context(), ports.CreateMessageInput{
		Access:         accessToken(c, req.Access),
		RoomID:         req.RoomID,
		Content:        req.Content,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	if res.AlreadyExisted {
		metrics.MessagesPostedTotal.WithLabelValues("replayed").Inc()
		return ok(c, idResponse{ID: res.ID})
	}
	metrics.MessagesPostedTotal.WithLabelValues("created").Inc()
	return created(c, idResponse{ID: res.ID})
}

// Delete removes a message. Sender only.
//
// @Summary      Delete a message
// @Tags         messages
// @Produce      json
// @Param        id   path      string  true  "Message id"
// @Success      200  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Security     BearerAuth
// @Router       /messages/{id} [delete]
func (h *MessageHandler) Delete(c echo.Context) error {
	var req deleteRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.messageService.Delete(c.Request().Context(), accessToken(c, req.Access), req.ID); err != nil {
		return err
	}
	return done(c)
}
