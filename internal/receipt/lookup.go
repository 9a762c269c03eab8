package receipt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultLookupURL is the ticket lookup endpoint of the fiscal data operator.
const DefaultLookupURL = "https://consumer.oofd.kz/api/tickets/get-by-url"

// Lookup resolves a ticket link into a ticket.
type Lookup interface {
	Fetch(ctx context.Context, ticketURL string, loc *time.Location) (*Ticket, error)
}

// Client queries the lookup endpoint over HTTP.
type Client struct {
	http      *http.Client
	lookupURL string
}

// NewClient creates a lookup client. An empty lookupURL uses DefaultLookupURL.
func NewClient(httpClient *http.Client, lookupURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if lookupURL == "" {
		lookupURL = DefaultLookupURL
	}
	return &Client{http: httpClient, lookupURL: lookupURL}
}

// requestURL copies the ticket link's query parameters onto the lookup
// endpoint, or passes the whole link as "url" when it has none.
func (c *Client) requestURL(ticketURL string) (string, error) {
	ticket, err := url.Parse(ticketURL)
	if err != nil {
		return "", malformed("parsing ticket link: %v", err)
	}
	endpoint, err := url.Parse(c.lookupURL)
	if err != nil {
		return "", fmt.Errorf("parsing lookup url: %w", err)
	}
	q := endpoint.Query()
	if len(ticket.Query()) > 0 {
		for k, vs := range ticket.Query() {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
	} else {
		q.Set("url", ticketURL)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (c *Client) Fetch(ctx context.Context, ticketURL string, loc *time.Location) (*Ticket, error) {
	reqURL, err := c.requestURL(ticketURL)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Fetch: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Fetch: requesting ticket: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Fetch: %w", malformed("lookup returned %s", resp.Status))
	}

	t, err := Decode(body, loc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return t, nil
}

var _ Lookup = (*Client)(nil)
