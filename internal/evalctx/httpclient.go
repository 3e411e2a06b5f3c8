package evalctx

import (
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultHTTPTimeout is the timeout applied to the http.send builtin when
// the caller doesn't specify one.
const DefaultHTTPTimeout = 5 * time.Second

// DefaultHTTPEnableRedirect is whether the http.send builtin follows
// redirects when the caller doesn't specify otherwise.
const DefaultHTTPEnableRedirect = false

// clientPool hands out *http.Client instances keyed by (timeout,
// enableRedirect), reusing the default client whenever the request
// parameters match the defaults and building a fresh one otherwise.
type clientPool struct {
	mu      sync.Mutex
	def     *http.Client
	byShape map[clientShape]*http.Client
}

type clientShape struct {
	timeout        time.Duration
	enableRedirect bool
}

func newClientPool() *clientPool {
	return &clientPool{
		def:     buildClient(DefaultHTTPTimeout, DefaultHTTPEnableRedirect),
		byShape: make(map[clientShape]*http.Client),
	}
}

func (p *clientPool) get(timeout time.Duration, enableRedirect bool) *http.Client {
	if timeout == DefaultHTTPTimeout && enableRedirect == DefaultHTTPEnableRedirect {
		return p.def
	}

	shape := clientShape{timeout: timeout, enableRedirect: enableRedirect}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.byShape[shape]; ok {
		return c
	}
	c := buildClient(timeout, enableRedirect)
	p.byShape[shape] = c
	return c
}

func buildClient(timeout time.Duration, enableRedirect bool) *http.Client {
	c := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	if !enableRedirect {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}
