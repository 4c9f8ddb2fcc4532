// Package airkorea scrapes the mobile AirKorea dashboard for air quality
// readings near a coordinate. There is no public JSON API; the page embeds
// its chart data in addRows() calls and the station name in the heading.
package airkorea

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultBaseURL = "http://m.airkorea.or.kr"

// Measurement keys in the order the page emits its chart datasets.
var seriesKeys = []string{"cai", "pm10", "pm2.5", "o3", "no2", "co", "so2"}

var addRowsPattern = regexp.MustCompile(`addRows\((\[.*\])\);`)

// Status is one station's recent readings. Data maps a measurement key to
// its hourly value series, oldest first.
type Status struct {
	StationName string
	Time        string
	Data        map[string][]string
}

type Client struct {
	// BaseURL defaults to the production host; tests override it.
	BaseURL string

	http *http.Client
}

func NewClient() *Client {
	return &Client{BaseURL: defaultBaseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch loads the dashboard for the given coordinate and extracts the
// nearest station's readings.
func (c *Client) Fetch(ctx context.Context, lat, lng string) (Status, error) {
	u := fmt.Sprintf("%s/main?lat=%s&lng=%s&deviceId=1234",
		c.BaseURL, url.QueryEscape(lat), url.QueryEscape(lng))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("airkorea: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("airkorea: unexpected status %d", resp.StatusCode)
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{}, err
	}
	return parsePage(string(page))
}

func parsePage(page string) (Status, error) {
	status := Status{Data: map[string][]string{}}

	for i, m := range addRowsPattern.FindAllStringSubmatch(page, -1) {
		if i >= len(seriesKeys) {
			break
		}
		values, err := parseSeries(m[1])
		if err != nil {
			return Status{}, fmt.Errorf("airkorea: chart data: %w", err)
		}
		status.Data[seriesKeys[i]] = values
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Status{}, fmt.Errorf("airkorea: parsing page: %w", err)
	}
	status.StationName, status.Time = headingInfo(doc)
	return status, nil
}

// parseSeries decodes one addRows payload. The page elides missing values
// as consecutive commas, which is not valid JSON until they are filled in.
func parseSeries(raw string) ([]string, error) {
	var rows [][]any
	if err := json.Unmarshal([]byte(fillEmpty(raw)), &rows); err != nil {
		return nil, err
	}

	var values []string
	for _, row := range rows {
		// The reading lives in one of the per-grade columns; the rest of
		// that group is empty.
		for _, idx := range []int{3, 5, 7, 9} {
			if idx >= len(row) {
				continue
			}
			if s, ok := row[idx].(string); ok && s != "" {
				values = append(values, s)
				break
			}
		}
	}
	return values, nil
}

func fillEmpty(s string) string {
	for {
		filled := strings.ReplaceAll(s, ",,", ",null,")
		if filled == s {
			return s
		}
		s = filled
	}
}

// headingInfo pulls the station name and reading time out of the page
// heading, skipping the decorative span inside the title.
func headingInfo(doc *html.Node) (station, at string) {
	h1 := findElement(doc, func(n *html.Node) bool { return n.Data == "h1" })
	if h1 == nil {
		return "", ""
	}
	if tit := findElement(h1, hasClass("tit")); tit != nil {
		station = strings.TrimSpace(textExcluding(tit, hasClass("ts")))
	}
	if tim := findElement(h1, hasClass("tim")); tim != nil {
		at = strings.TrimSpace(textExcluding(tim, nil))
	}
	return station, at
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, attr := range n.Attr {
			if attr.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
		return false
	}
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textExcluding(n *html.Node, skip func(*html.Node) bool) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip != nil && skip(n) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}
