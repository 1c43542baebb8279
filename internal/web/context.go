package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for
// comparison logs. RemoteAddr has already been resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}
