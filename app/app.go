package app

import (
	"errors"

	"nightlight/jobqueue"
	"nightlight/notify"
	"nightlight/store"

	"go.uber.org/zap"
)

var (
	// ErrPingResolved means the ping already left SENT (responded or expired)
	// and the requested response transition did not apply.
	ErrPingResolved = errors.New("ping already responded or expired")
)

type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

type App struct {
	st *store.PostgresStore

	queue    *jobqueue.Queue
	notifier *notify.Notifier

	log *zap.Logger
}

func New(st *store.PostgresStore, queue *jobqueue.Queue, notifier *notify.Notifier, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		st:       st,
		queue:    queue,
		notifier: notifier,
		log:      log,
	}
}
