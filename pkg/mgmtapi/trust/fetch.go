package trust

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/proxy"
)

// FetchOptions controls how the live fingerprint is retrieved.
type FetchOptions struct {
	Proxy     proxy.Settings
	Timeout   time.Duration
	Context   string // API context path, "web_api" when empty
	UserAgent string
}

// FetchServerFingerprint connects to https://host:port/{context}/ accepting any
// certificate and returns the lower-case SHA-1 hex digest of the leaf certificate.
// An HTTP level failure after the handshake still yields the fingerprint.
func FetchServerFingerprint(ctx context.Context, host string, port int, opts FetchOptions) (string, error) {
	apiContext := strings.Trim(opts.Context, "/")
	if apiContext == "" {
		apiContext = "web_api"
	}

	var (
		mu   sync.Mutex
		seen string
	)
	client := httpclient.NewClientWithOptions(
		httpclient.StaticConfig{
			ServerURL: "https://" + net.JoinHostPort(host, strconv.Itoa(port)),
			UserAgent: opts.UserAgent,
		},
		httpclient.ClientOptions{
			DisableCertValidation: true,
			OnCertificate: func(fp string) {
				mu.Lock()
				seen = fp
				mu.Unlock()
			},
			Proxy:   opts.Proxy.ProxyFunc(),
			Timeout: opts.Timeout,
		},
	)
	defer client.CloseIdleConnections()

	_, err := client.DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodGet,
		Path:   apiContext + "/",
	})

	mu.Lock()
	defer mu.Unlock()
	if seen != "" {
		return seen, nil
	}
	if err == nil {
		return "", ErrConnectivity.Msg("server presented no certificate")
	}
	return "", ErrConnectivity.MsgErr("failed to connect to "+Key(host, port), err).SetCode(httpclient.Classify(err))
}
