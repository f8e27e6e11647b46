package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blackgold9/canvas-integration/pkg/log"
)

// fetch GETs endpoint and follows rel="next" links until there are none,
// returning every element of every page in order. A first page that is not
// a JSON array is returned as the only element.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("per_page", strconv.Itoa(pageSize))

	u, err := c.endpointURL(endpoint, q)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	for page := 1; u != ""; page++ {
		body, link, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(body, &elems); err != nil {
			if page == 1 && json.Valid(body) {
				return []json.RawMessage{body}, nil
			}
			return nil, fmt.Errorf("failed to decode page %d of %s: %w", page, endpoint, err)
		}
		items = append(items, elems...)

		u = nextLink(link)
		if u != "" {
			log.Ctx(ctx).DebugContext(ctx, "following canvas next link", slog.String("endpoint", endpoint), slog.Int("page", page+1))
		}
	}
	return items, nil
}

// fetchAll is fetch followed by decoding every element into T.
func fetchAll[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	raw, err := c.fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("failed to decode item %d of %s: %w", i, endpoint, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) endpointURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid canvas url: %w", err)
	}
	u.Path, err = url.JoinPath(u.Path, apiPath, endpoint)
	if err != nil {
		return "", err
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// get issues one authenticated GET and returns the body along with the raw
// Link header.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	path := req.URL.Path

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", c.transportError(ctx, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		log.Ctx(ctx).ErrorContext(ctx, "canvas request failed", slog.String("path", path), slog.Int("status", resp.StatusCode))
		return nil, "", &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Path:       path,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.transportError(ctx, path, err)
	}
	return body, resp.Header.Get("Link"), nil
}

func (c *Client) transportError(ctx context.Context, path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		log.Ctx(ctx).ErrorContext(ctx, "canvas request timed out", slog.String("path", path), slog.Duration("timeout", c.timeout))
		return &TimeoutError{Path: path, Err: err}
	}
	log.Ctx(ctx).ErrorContext(ctx, "error fetching data from canvas", slog.String("path", path), slog.Any("error", err))
	return fmt.Errorf("canvas request %s failed: %w", path, err)
}

// nextLink returns the URL of the rel="next" entry of a Link header, or ""
// when there is none.
func nextLink(header string) string {
	for _, entry := range strings.Split(header, ",") {
		parts := strings.Split(entry, ";")
		if len(parts) < 2 {
			continue
		}
		var isNext bool
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			if p == `rel="next"` || p == "rel=next" {
				isNext = true
				break
			}
		}
		if !isNext {
			continue
		}
		target := strings.TrimSpace(parts[0])
		if strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">") {
			return target[1 : len(target)-1]
		}
	}
	return ""
}
