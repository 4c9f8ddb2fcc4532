// Package kakao wraps the Kakao local search API for address geocoding.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrLocationNotFound means the query matched no known address.
var ErrLocationNotFound = errors.New("kakao: location not found")

const defaultBaseURL = "https://dapi.kakao.com"

// Location is a geocoded address. Coordinates stay as the API's decimal
// strings; they are only ever passed through to other services.
type Location struct {
	Name string
	Lat  string
	Lng  string
}

type Client struct {
	// BaseURL defaults to the production API host; tests override it.
	BaseURL string

	key  string
	http *http.Client
}

func NewClient(restKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		key:     restKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchLocation geocodes a free-form address query, returning the first
// match.
func (c *Client) SearchLocation(ctx context.Context, query string) (Location, error) {
	u := fmt.Sprintf("%s/v2/local/search/address.json?query=%s", c.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Authorization", "KakaoAK "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("kakao: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("kakao: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Documents []struct {
			AddressName string `json:"address_name"`
			X           string `json:"x"`
			Y           string `json:"y"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("kakao: decoding response: %w", err)
	}
	if len(body.Documents) == 0 {
		return Location{}, ErrLocationNotFound
	}

	doc := body.Documents[0]
	return Location{Name: doc.AddressName, Lat: doc.Y, Lng: doc.X}, nil
}
