package worker

import (
	"context"

	"github.com/spec-kit/field-dispatch/internal/service"
)

// StartSyncWorker registers sync handlers and drains the queue in the
// background until ctx is cancelled. The returned channel closes once the
// queue is flushed.
func StartSyncWorker(ctx context.Context, syncService *service.SyncService) <-chan struct{} {
	done := make(chan struct{})
	if syncService == nil {
		close(done)
		return done
	}
	syncService.RegisterHandlers()
	go func() {
		defer close(done)
		syncService.Run(ctx)
	}()
	return done
}
