package email

import (
	"context"
	"time"
)

func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Detach cancellation so a client that hangs up after the commit does not
	// abort the receipt.
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
