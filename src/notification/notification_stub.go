//go:build !windows

package notification

import "go.uber.org/zap"

// ShowBlockingError logs a blocking error message on non-Windows platforms.
func ShowBlockingError(title, message string) {
	zap.S().Errorw(title, "message", message)
}

func showPopup(title, body string) error {
	zap.S().Infow("Notification", "title", title, "body", body)
	return nil
}
