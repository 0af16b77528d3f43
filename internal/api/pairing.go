package api

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// PairingHandler serves the device-pairing page. While a pairing code is
// pending it renders the code as a scannable QR image; once the session is
// linked it tells the operator nothing further is needed.
type PairingHandler struct {
	session SessionStatus
}

// NewPairingHandler creates a new pairing handler.
func NewPairingHandler(session SessionStatus) *PairingHandler {
	return &PairingHandler{session: session}
}

// Pairing renders the pairing page as HTML.
func (h *PairingHandler) Pairing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if h.session.IsAuthenticated() {
		fmt.Fprint(w, pairingPage("Sessão conectada", "<p>O bot já está autenticado. Nenhum pareamento é necessário.</p>"))
		return
	}

	code := h.session.PendingCode()
	if code == "" {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, pairingPage("Aguardando", "<p>Nenhum código de pareamento pendente. Tente novamente em instantes.</p>"))
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 320)
	if err != nil {
		slog.Error("Failed to render pairing QR code", "error", err)
		Error(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}

	img := fmt.Sprintf(`<p>Escaneie o código com o aplicativo para conectar o bot:</p>
<img alt="QR code de pareamento" src="data:image/png;base64,%s">`,
		base64.StdEncoding.EncodeToString(png))
	fmt.Fprint(w, pairingPage("Parear dispositivo", img))
}

// PairingStatus returns the pairing state as JSON, for polling clients.
func (h *PairingHandler) PairingStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"authenticated":   h.session.IsAuthenticated(),
		"pairing_pending": h.session.PendingCode() != "",
	})
}

// RegisterRoutes registers the pairing routes.
func (h *PairingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/qr", h.Pairing)
	r.Get("/qr/status", h.PairingStatus)
}

func pairingPage(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="10">
<title>%s</title>
<style>body{font-family:sans-serif;text-align:center;margin-top:4rem}</style>
</head>
<body>
<h1>%s</h1>
%s
</body>
</html>`, title, title, body)
}
