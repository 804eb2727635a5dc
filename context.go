package sessionguard

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type providerContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. CreateSession records
// it in the session metadata when the explicit Metadata leaves IP empty.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. CreateSession
// records it in the session metadata when the explicit Metadata leaves
// UserAgent empty.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithProvider attaches the identity provider name (e.g. "google", "password")
// to ctx for session metadata.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerContextKey{}, provider)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func providerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	provider, _ := ctx.Value(providerContextKey{}).(string)
	return provider
}
