// Package pixiv talks to pixiv's web endpoints through a cookie-based
// session, the way a logged-in browser would. The session cookie jar is
// persisted as a JSON file so one interactive login survives restarts.
package pixiv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrNotAuthenticated means no usable session exists; the operator
	// has to run the login flow first.
	ErrNotAuthenticated = errors.New("pixiv: not logged in")
	// ErrNotFound covers missing or inaccessible works and users.
	ErrNotFound = errors.New("pixiv: not found")
	// ErrLoginFailed means the credential was rejected by pixiv.
	ErrLoginFailed = errors.New("pixiv: login failed")
	// ErrCredentialFormat means the decrypted login blob was malformed.
	ErrCredentialFormat = errors.New("pixiv: malformed credential")
	// ErrDecrypt means the credential blob was not sealed against our key.
	ErrDecrypt = errors.New("pixiv: credential decryption failed")
)

const (
	defaultBaseURL     = "https://www.pixiv.net"
	defaultAccountsURL = "https://accounts.pixiv.net"
)

// Illust is the subset of pixiv's illustration metadata the bot renders.
type Illust struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"` // raw HTML
	IllustType  int        `json:"illustType"`
	CreateDate  string     `json:"createDate"`
	Restrict    int        `json:"restrict"`
	XRestrict   int        `json:"xRestrict"`
	URLs        IllustURLs `json:"urls"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	PageCount   int        `json:"pageCount"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	SeriesNav   *SeriesNav `json:"seriesNavData"`
}

type IllustURLs struct {
	Original string `json:"original"`
	Regular  string `json:"regular"`
	Small    string `json:"small"`
}

type SeriesNav struct {
	Title string `json:"title"`
}

// Restricted reports whether the work carries any age restriction flag.
func (i Illust) Restricted() bool {
	return i.Restrict != 0 || i.XRestrict != 0
}

// CreatedAt parses the work's creation timestamp; the zero time when the
// field is absent or malformed.
func (i Illust) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, i.CreateDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TypeString names the illustration kind for display.
func (i Illust) TypeString() string {
	switch i.IllustType {
	case 0:
		return "illustration"
	case 1:
		return "manga"
	case 2:
		return "animation"
	default:
		return "unknown"
	}
}

// User is a creator profile.
type User struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Comment  string `json:"comment"`
	ImageBig string `json:"imageBig"`
}

// apiResponse is pixiv's uniform ajax envelope.
type apiResponse struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

// Session is an authenticated pixiv web session.
type Session struct {
	// BaseURL and AccountsURL default to production pixiv; tests point
	// them at local servers.
	BaseURL     string
	AccountsURL string

	http *http.Client
	jar  *cookiejar.Jar
}

func newSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Session{
		BaseURL:     defaultBaseURL,
		AccountsURL: defaultAccountsURL,
		http:        &http.Client{Jar: jar},
		jar:         jar,
	}, nil
}

// sessionFile is the persisted cookie jar.
type sessionFile struct {
	Cookies []sessionCookie `json:"cookies"`
}

type sessionCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// FromSessionFile restores a session persisted by SaveTo. A missing file
// means nobody logged in yet.
func FromSessionFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	var stored sessionFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("pixiv: corrupt session file: %w", err)
	}

	s, err := newSession()
	if err != nil {
		return nil, err
	}
	s.restoreCookies(stored)
	return s, nil
}

func (s *Session) restoreCookies(stored sessionFile) {
	base, _ := url.Parse(s.BaseURL)
	cookies := make([]*http.Cookie, 0, len(stored.Cookies))
	for _, c := range stored.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	s.jar.SetCookies(base, cookies)
}

// SaveTo persists the current cookie jar with owner-only permissions.
func (s *Session) SaveTo(path string) error {
	base, _ := url.Parse(s.BaseURL)
	var stored sessionFile
	for _, c := range s.jar.Cookies(base) {
		stored.Cookies = append(stored.Cookies, sessionCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domainOf(s.BaseURL),
			Path:   "/",
		})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// IllustInfo fetches illustration metadata by ID.
func (s *Session) IllustInfo(ctx context.Context, id string) (Illust, error) {
	var illust Illust
	if err := s.getJSON(ctx, fmt.Sprintf("%s/ajax/illust/%s", s.BaseURL, id), &illust); err != nil {
		return Illust{}, err
	}
	return illust, nil
}

// UserProfile fetches a creator profile by user ID.
func (s *Session) UserProfile(ctx context.Context, id string) (User, error) {
	var user User
	if err := s.getJSON(ctx, fmt.Sprintf("%s/ajax/user/%s?full=1", s.BaseURL, id), &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Session) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("pixiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrNotFound
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("pixiv: decoding response: %w", err)
	}
	if envelope.Error {
		return ErrNotFound
	}
	return json.Unmarshal(envelope.Body, out)
}

// Download fetches a binary asset. Pixiv's media hosts refuse requests
// without a matching Referer.
func (s *Session) Download(ctx context.Context, rawURL, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", referer)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pixiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrNotFound
	}
	return io.ReadAll(resp.Body)
}

func domainOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	return "." + strings.TrimPrefix(u.Host, "www.")
}
