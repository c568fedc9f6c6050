package httpclient

import "context"

// HTTPClientInterface is the transport a management API client sends through.
type HTTPClientInterface interface {
	// URL returns the full URL for a path on the configured server.
	URL(path string) (string, error)

	// DoRequest makes an HTTP request with the given options. Non-2xx replies are
	// returned as a Response, not an error.
	DoRequest(ctx context.Context, opts RequestOptions) (*Response, error)

	// CloseIdleConnections releases pooled connections.
	CloseIdleConnections()
}

var _ HTTPClientInterface = &HTTPClient{}
var _ Configurator = StaticConfig{}
