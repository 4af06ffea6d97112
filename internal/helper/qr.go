package helper

import (
	"io"

	"github.com/mdp/qrterminal/v3"
)

// RenderQR draws the pairing code as a compact half-block QR on w.
func RenderQR(w io.Writer, code string) {
	qrterminal.GenerateHalfBlock(code, qrterminal.L, w)
}
