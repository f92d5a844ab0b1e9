package notification

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxBodyRunes = 200

// Notify shows a short non-blocking toast. It returns once the popup is queued.
func Notify(title, body string) error {
	if utf8.RuneCountInString(body) > maxBodyRunes {
		body = string([]rune(body)[:maxBodyRunes]) + "..."
	}
	zap.S().Debugw("Showing notification", "title", title)
	return showPopup(title, body)
}

// Toast adapts Notify to the fix pipeline's notifier interface.
type Toast struct{}

func (Toast) Notify(title, body string) error { return Notify(title, body) }
