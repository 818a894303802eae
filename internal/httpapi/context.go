package httpapi

import (
	"context"
)

// serverBaseCtx is the process-level context handlers derive from. It is
// canceled on shutdown so in-flight work stops even when the client keeps
// its connection open.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context from base that is additionally canceled
// when req is done. The cancel func must always be called.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	stop := context.AfterFunc(req, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
