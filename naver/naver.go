// Package naver is a small client for the Naver local search API.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hupe1980/tripmesh/core"
)

// DefaultBaseURL is the local search endpoint.
const DefaultBaseURL = "https://openapi.naver.com/v1/search/local.json"

// ErrCredentialsMissing is returned when no client ID or secret is set.
var ErrCredentialsMissing = errors.New("Naver API credentials are not configured") //nolint:staticcheck // provider name

// Options configure a Client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	Display int
	Sort    string // random, comment

	HTTPClient *http.Client
}

// Client queries the local search API. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	opts Options
}

// New creates a Client. The default HTTP client is instrumented with
// OpenTelemetry.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Display: 10,
		Sort:    "random",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{opts: opts}
}

type item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Telephone   string `json:"telephone"`
	Address     string `json:"address"`
	RoadAddress string `json:"roadAddress"`
	MapX        string `json:"mapx"`
	MapY        string `json:"mapy"`
}

type response struct {
	Items []item `json:"items"`
}

// Search returns the places matching query. An empty query yields no
// places and no error.
func (c *Client) Search(ctx context.Context, query string) ([]core.Place, error) {
	if c.opts.ClientID == "" || c.opts.ClientSecret == "" {
		return nil, ErrCredentialsMissing
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(c.opts.Display))
	params.Set("start", "1")
	params.Set("sort", c.opts.Sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.opts.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.opts.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("naver search %q: status %d: %s", query, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}

	places := make([]core.Place, 0, len(decoded.Items))
	for _, it := range decoded.Items {
		places = append(places, core.Place{
			Name:        stripTags(it.Title),
			Address:     it.Address,
			RoadAddress: it.RoadAddress,
			Category:    it.Category,
			Telephone:   it.Telephone,
			Link:        it.Link,
			MapX:        it.MapX,
			MapY:        it.MapY,
			Description: stripTags(it.Description),
		})
	}

	return places, nil
}

var tagReplacer = strings.NewReplacer("<b>", "", "</b>", "")

func stripTags(s string) string { return tagReplacer.Replace(s) }
