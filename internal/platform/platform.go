package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// subscriptionKeyword is the type keyword flagging a subscription-gated item.
const subscriptionKeyword = "Requires Subscription"

// Item is the platform metadata record for a monitored entity.
type Item struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Snippet      string   `json:"snippet"`
	URL          string   `json:"url"`
	TypeKeywords []string `json:"typeKeywords"`
}

// RequiresToken reports whether probes against the item's service must carry
// an access token.
func (it *Item) RequiresToken() bool {
	for _, kw := range it.TypeKeywords {
		if kw == subscriptionKeyword {
			return true
		}
	}
	return false
}

// Layer is one sub-resource of a service exposing a queryable feature count.
type Layer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// UsageSeries is the raw usage payload for an item.
type UsageSeries struct {
	Data []UsageData `json:"data"`
}

// UsageData is one series inside a UsageSeries; Num holds hourly
// [timestamp, count] pairs, newest last.
type UsageData struct {
	Num [][2]float64 `json:"num"`
}

// HourlyCounts returns the hourly pairs of the first series, or nil when the
// payload carries no data.
func (u *UsageSeries) HourlyCounts() [][2]float64 {
	if u == nil || len(u.Data) == 0 {
		return nil
	}
	return u.Data[0].Num
}

// Client is the content-platform surface the validation pipeline depends on.
type Client interface {
	// Item resolves an entity ID to its live metadata record. A nil error
	// always carries a non-nil item.
	Item(ctx context.Context, id string) (*Item, error)

	// Layers enumerates the layers of the item's backing service.
	Layers(ctx context.Context, it *Item) ([]Layer, error)

	// Usage fetches the item's request-count series for the given date range.
	Usage(ctx context.Context, id, dateRange string) (*UsageSeries, error)
}

// RESTClient talks to the platform's sharing REST API.
type RESTClient struct {
	base   string
	token  string
	client *http.Client
}

// NewRESTClient returns a client rooted at baseURL (e.g.
// "https://www.arcgis.com"). token may be empty for public content.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// apiError is the error envelope the platform embeds in 200 responses.
type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RESTClient) Item(ctx context.Context, id string) (*Item, error) {
	var it Item
	u := fmt.Sprintf("%s/sharing/rest/content/items/%s", c.base, url.PathEscape(id))
	if err := c.getJSON(ctx, u, nil, &it); err != nil {
		return nil, err
	}
	if it.ID == "" {
		return nil, fmt.Errorf("platform: item %s not found", id)
	}
	return &it, nil
}

func (c *RESTClient) Layers(ctx context.Context, it *Item) ([]Layer, error) {
	if it.URL == "" {
		return nil, fmt.Errorf("platform: item %s has no service url", it.ID)
	}
	var payload struct {
		Layers []Layer `json:"layers"`
	}
	if err := c.getJSON(ctx, it.URL, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Layers, nil
}

func (c *RESTClient) Usage(ctx context.Context, id, dateRange string) (*UsageSeries, error) {
	var series UsageSeries
	u := fmt.Sprintf("%s/sharing/rest/content/items/%s/usage", c.base, url.PathEscape(id))
	params := url.Values{"dateRange": {dateRange}}
	if err := c.getJSON(ctx, u, params, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// getJSON performs a GET with f=json (plus the client token) and decodes the
// response into out. A platform error envelope in a 200 response is
// surfaced as an error.
func (c *RESTClient) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("platform: invalid url %q: %w", rawURL, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("f", "json")
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform: get %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform: get %s: unexpected status %d", u.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("platform: read body: %w", err)
	}

	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return fmt.Errorf("platform: api error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("platform: decode response: %w", err)
	}
	return nil
}
