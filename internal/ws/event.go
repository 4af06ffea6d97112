package ws

import "time"

// Nama event (konstanta) supaya konsisten antara BE dan FE.
const (
	EventQRGenerated         = "QR_GENERATED"
	EventSessionStateChanged = "SESSION_STATE_CHANGED"
	EventSessionError        = "SESSION_ERROR"
)

// WsEvent adalah envelope umum setiap pesan yang dikirim via WebSocket.
// FE cukup switch berdasarkan field Event, lalu cast Data ke bentuk yang sesuai.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RealtimePublisher is implemented by Hub; the session controller only needs Publish.
type RealtimePublisher interface {
	Publish(evt WsEvent)
}

// QRGeneratedData dikirim ketika QR baru siap discan.
type QRGeneratedData struct {
	QRData    string    `json:"qr_data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStateChangedData dikirim setiap kali state machine sesi berpindah state.
type SessionStateChangedData struct {
	State         string `json:"state"`
	PreviousState string `json:"previous_state"`
	Ready         bool   `json:"ready"`
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason,omitempty"`
}

// SessionErrorData untuk error penting, misalnya login gagal atau initialize gagal.
type SessionErrorData struct {
	Code    string `json:"code"` // contoh: "AUTH_FAILURE", "INIT_FAILED", "RETRY_EXHAUSTED"
	Message string `json:"message"`
}
