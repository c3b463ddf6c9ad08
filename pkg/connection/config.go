package connection

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	gorilla "github.com/gorilla/websocket"

	"github.com/streamsub/streamsub.go/pkg/logger"
)

// Config carries everything needed to construct a source. It is not
// absolutely necessary to build one via NewConfig, but doing so ensures
// the logger and HTTP client are set up correctly.
type Config struct {
	URL url.URL

	// WithCredentials makes the SSE source send ambient credentials:
	// basic-auth userinfo embedded in the URL and cookies collected on
	// earlier responses. Off by default.
	WithCredentials bool

	// LastEventID seeds the Last-Event-ID request header so a replacement
	// connection can resume where its predecessor stopped.
	LastEventID string

	// HTTPClient overrides the client used by the SSE source.
	HTTPClient *http.Client

	// Dialer overrides the dialer used by the WebSocket source.
	Dialer *gorilla.Dialer

	Logger logger.Logger
}

// NewConfig creates a Config for the given stream endpoint with a text
// logger on stdout. Endpoints with an http or https scheme are served by
// the SSE source, ws and wss by the WebSocket source.
func NewConfig(u *url.URL) *Config {
	return &Config{
		URL:    *u,
		Logger: logger.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

// FromEndpointURL constructs the source matching the endpoint scheme.
func FromEndpointURL(conf *Config) (EventSource, error) {
	switch conf.URL.Scheme {
	case "http", "https":
		return NewSSESource(conf), nil
	case "ws", "wss":
		return NewWebSocketSource(conf), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, conf.URL.Scheme)
	}
}
