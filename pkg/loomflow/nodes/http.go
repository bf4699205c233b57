package nodes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// defaultHTTPTimeout bounds requests when neither a custom client nor
// a per-node timeout is configured.
const defaultHTTPTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read into the
// pool. Oversized bodies are truncated, not failed.
const maxResponseBytes = 10 << 20

// HTTPRequestNode performs an HTTP request with templated URL, headers,
// and body. The response lands in the pool as status_code, body, and
// headers; a non-2xx status is data for downstream branching, not a
// node failure.
type HTTPRequestNode struct {
	base
	method  string
	url     string
	headers map[string]string
	body    string
	client  *http.Client
}

func buildHTTPRequest(cfg loomflow.NodeConfig, deps Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	url := c.String("url", "")
	if url == "" {
		return nil, fmt.Errorf("http-request node %q has no url", cfg.ID)
	}
	client := deps.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPRequestNode{
		base:    newBase(cfg),
		method:  strings.ToUpper(c.String("method", http.MethodGet)),
		url:     url,
		headers: c.StringMap("headers", nil),
		body:    c.String("body", ""),
		client:  client,
	}, nil
}

// Run implements loomflow.Node.
func (n *HTTPRequestNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	pool := rc.Pool()
	url := pool.ConvertTemplate(n.url)

	var body io.Reader
	if n.body != "" {
		body = strings.NewReader(pool.ConvertTemplate(n.body))
	}

	req, err := http.NewRequestWithContext(ctx, n.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range n.headers {
		req.Header.Set(k, pool.ConvertTemplate(v))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", n.method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return loomflow.Succeeded(map[string]vars.Value{
		"status_code": vars.NumberValue(float64(resp.StatusCode)),
		"body":        vars.StringValue(string(data)),
		"headers":     vars.ObjectValue(headers),
	}), nil
}
