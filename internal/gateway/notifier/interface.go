package notifier

import "context"

// TextNotifier delivers one operator-facing text message.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
