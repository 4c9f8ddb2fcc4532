// Package syosetu queries the Shousetsuka ni Narou novel API.
package syosetu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound means the API knows no novel under the given ncode.
var ErrNotFound = errors.New("syosetu: novel not found")

const defaultAPIURL = "https://api.syosetu.com/novelapi/api/"

// Novel is one entry from the novel API.
type Novel struct {
	Title      string `json:"title"`
	Ncode      string `json:"ncode"`
	UserID     int    `json:"userid"`
	Writer     string `json:"writer"`
	Story      string `json:"story"`
	Genre      int    `json:"genre"`
	Keyword    string `json:"keyword"`
	GeneralAll int    `json:"general_all_no"`
	NovelType  int    `json:"noveltype"`
	End        int    `json:"end"`
	Updated    string `json:"novelupdated_at"`
}

// PageURL is the public reader URL for the novel.
func (n Novel) PageURL() string {
	return "https://ncode.syosetu.com/" + strings.ToLower(n.Ncode) + "/"
}

// Keywords splits the API's space-separated keyword field.
func (n Novel) Keywords() []string {
	return strings.Fields(n.Keyword)
}

// Serial reports whether the novel is an ongoing or finished serial rather
// than a one-shot.
func (n Novel) Serial() bool {
	return n.NovelType == 1
}

// Finished reports whether a serial has concluded.
func (n Novel) Finished() bool {
	return n.End == 0
}

// UpdatedAt parses the API's local-time update stamp; the zero time when
// it is malformed.
func (n Novel) UpdatedAt() time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", n.Updated)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Client queries the novel API.
type Client struct {
	// APIURL defaults to the production endpoint; tests override it.
	APIURL string

	http *http.Client
}

func NewClient() *Client {
	return &Client{APIURL: defaultAPIURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// Lookup fetches novel metadata by ncode. The API answers with a JSON
// array whose first element is a count record, followed by the novels.
func (c *Client) Lookup(ctx context.Context, ncode string) (Novel, error) {
	u := fmt.Sprintf("%s?out=json&ncode=%s", c.APIURL, strings.ToLower(ncode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Novel{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Novel{}, fmt.Errorf("syosetu: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Novel{}, fmt.Errorf("syosetu: unexpected status %d", resp.StatusCode)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return Novel{}, fmt.Errorf("syosetu: decoding response: %w", err)
	}
	if len(rows) < 2 {
		return Novel{}, ErrNotFound
	}

	var head struct {
		Allcount int `json:"allcount"`
	}
	if err := json.Unmarshal(rows[0], &head); err != nil {
		return Novel{}, fmt.Errorf("syosetu: decoding count record: %w", err)
	}
	if head.Allcount == 0 {
		return Novel{}, ErrNotFound
	}

	var novel Novel
	if err := json.Unmarshal(rows[1], &novel); err != nil {
		return Novel{}, fmt.Errorf("syosetu: decoding novel record: %w", err)
	}
	return novel, nil
}
