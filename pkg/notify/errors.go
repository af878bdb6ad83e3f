package notify

import "errors"

var (
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
	ErrQueueFull        = errors.New("notification queue is full")
	ErrNoRecipient      = errors.New("no email address for user")
)
