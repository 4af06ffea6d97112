package handler

import (
	"context"
	"errors"
	"net/http"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/metrics"
	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types"
)

const (
	msgFieldsRequired = "Number and message are required."
	msgNotReady       = "WhatsApp client is not ready. Please try again later."
	msgNotRegistered  = "The provided number is not registered on WhatsApp."
	msgSent           = "Message sent successfully."
	msgSendFailed     = "Failed to send message: "
)

// Session is what the HTTP layer needs from the session controller.
type Session interface {
	Ready() bool
	Authenticated() bool
	State() model.State
	Deliver(ctx context.Context, jid types.JID, body string) (model.SendResult, error)
}

type Handler struct {
	session Session
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(session Session, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{session: session, metrics: m, log: log}
}

// Request body untuk send message
type SendMessageRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	State         string `json:"state"`
}

// GET /health
func (h *Handler) Health(c echo.Context) error {
	status := "initializing"
	if h.session.Ready() {
		status = "ready"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        status,
		Authenticated: h.session.Authenticated(),
		State:         h.session.State().String(),
	})
}

// POST /send-message
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		h.metrics.ObserveSend(metrics.ResultInvalid)
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+bindMessage(err))
	}

	if req.Number == "" || req.Message == "" {
		h.metrics.ObserveSend(metrics.ResultInvalid)
		return ErrorResponse(c, http.StatusBadRequest, msgFieldsRequired)
	}

	if !h.session.Ready() {
		h.metrics.ObserveSend(metrics.ResultNotReady)
		return ErrorResponse(c, http.StatusServiceUnavailable, msgNotReady)
	}

	// Format nomor yang salah tetap 500 (bukan 400), lihat DESIGN.md
	jid, err := helper.ChatID(req.Number)
	if err != nil {
		h.metrics.ObserveSend(metrics.ResultInvalid)
		h.log.Error().Err(err).Msg("Error sending message")
		return ErrorResponse(c, http.StatusInternalServerError, msgSendFailed+err.Error())
	}

	// Pengiriman tidak dibatalkan walaupun caller memutus koneksi
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := h.session.Deliver(ctx, jid, req.Message)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotReady):
		h.metrics.ObserveSend(metrics.ResultNotReady)
		return ErrorResponse(c, http.StatusServiceUnavailable, msgNotReady)
	case errors.Is(err, service.ErrNotRegistered):
		h.metrics.ObserveSend(metrics.ResultNotRegistered)
		return ErrorResponse(c, http.StatusNotFound, msgNotRegistered)
	default:
		h.metrics.ObserveSend(metrics.ResultFailed)
		h.log.Error().Err(err).Str("to", jid.User).Msg("Error sending message")
		return ErrorResponse(c, http.StatusInternalServerError, msgSendFailed+err.Error())
	}

	h.metrics.ObserveSend(metrics.ResultSent)
	return SuccessResponse(c, http.StatusOK, msgSent, map[string]interface{}{
		"messageId": res.MessageID,
		"timestamp": res.Timestamp.Unix(),
		"to":        req.Number,
	})
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
