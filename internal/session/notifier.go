package session

import (
	"fmt"
	"log/slog"
	"os"

	qrcode "github.com/skip2/go-qrcode"
)

// ConsoleNotifier surfaces lifecycle notifications to the operator on the
// process terminal. Pairing codes are rendered as a scannable QR block,
// the same code the HTTP pairing page serves.
type ConsoleNotifier struct{}

// NewConsoleNotifier creates a console notifier.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

// PairingRequired prints the pairing code as a terminal QR block.
func (n *ConsoleNotifier) PairingRequired(code string) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		slog.Error("Failed to render terminal QR code", "error", err)
		fmt.Fprintf(os.Stdout, "\nPairing code: %s\n\n", code)
		return
	}
	fmt.Fprintf(os.Stdout, "\nScan this code to link the device:\n%s\n", qr.ToSmallString(false))
}

// Ready logs that the session is linked and messages will be processed.
func (n *ConsoleNotifier) Ready(identity string) {
	slog.Info("Bot ready, messages will be processed", "identity", identity)
}

// AuthFailed tells the operator pairing must be retried.
func (n *ConsoleNotifier) AuthFailed(reason string) {
	slog.Error("Pairing failed, restart pairing from the device", "reason", reason)
}

// Disconnected logs the drop; reconnection is handled by the manager.
func (n *ConsoleNotifier) Disconnected(reason string) {
	slog.Warn("Connection to the messaging service lost", "reason", reason)
}
