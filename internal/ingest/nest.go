package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/config"
	"github.com/tenderedge/postaward/internal/resilience"
)

const nestService = "nest"

// ReleasePage is one page of the NeST release feed.
type ReleasePage struct {
	Releases   []Release
	NextCursor string
}

// UnmarshalJSON decodes a feed page. The feed names the cursor either
// next_cursor or nextCursor and sends it as a number or a string. A release
// that does not decode is logged and dropped.
func (p *ReleasePage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Releases   []json.RawMessage `json:"releases"`
		NextCursor json.RawMessage   `json:"next_cursor"`
		NextCamel  json.RawMessage   `json:"nextCursor"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.NextCursor = cursorString(wire.NextCursor)
	if p.NextCursor == "" {
		p.NextCursor = cursorString(wire.NextCamel)
	}
	p.Releases = make([]Release, 0, len(wire.Releases))
	for _, raw := range wire.Releases {
		var rel Release
		if err := json.Unmarshal(raw, &rel); err != nil {
			zap.L().Warn("ingest: skipping undecodable release", zap.Error(err))
			continue
		}
		rel.Raw = raw
		p.Releases = append(p.Releases, rel)
	}
	return nil
}

func cursorString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// NestClient reads OCDS releases from the NeST API.
type NestClient struct {
	baseURL string
	client  *http.Client
	limiter *adaptiveLimiter
	policy  *resilience.Policy
}

// NewNestClient creates a NestClient from the nest config section.
func NewNestClient(cfg config.NestConfig, policy *resilience.Policy) *NestClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NestClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: newAdaptiveLimiter(cfg.RatePerSecond),
		policy:  policy,
	}
}

// FetchReleases fetches the page at cursor. An empty since fetches the
// whole feed.
func (c *NestClient) FetchReleases(ctx context.Context, cursor, since string) (*ReleasePage, error) {
	q := url.Values{}
	q.Set("cursor", cursor)
	if since != "" {
		q.Set("since", since)
	}
	u := c.baseURL + "/releases?" + q.Encode()

	return resilience.CallVal(ctx, c.policy, nestService, "fetch releases", func(ctx context.Context) (*ReleasePage, error) {
		return c.get(ctx, u)
	})
}

func (c *NestClient) get(ctx context.Context, u string) (*ReleasePage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ingest: rate limiter wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create nest request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: nest request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.onRateLimit()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resilience.StatusError("ingest: nest", resp.StatusCode, string(body))
	}

	var page ReleasePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, eris.Wrap(err, "ingest: decode nest page")
	}
	c.limiter.onSuccess()
	return &page, nil
}
