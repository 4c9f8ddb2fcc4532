package pixiv

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var (
	postKeyPattern = regexp.MustCompile(`name="post_key"\s+value="([0-9a-f]+)"`)
	tokenPattern   = regexp.MustCompile(`pixiv\.context\.token\s*=\s*"([0-9a-f]+)"`)
)

// Login performs the web login flow and leaves the session cookies in the
// jar. Callers persist them with SaveTo.
func (s *Session) Login(ctx context.Context, username, password string) error {
	postKey, err := s.fetchPostKey(ctx)
	if err != nil {
		return err
	}

	form := url.Values{
		"pixiv_id": {username},
		"password": {password},
		"post_key": {postKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.AccountsURL+"/api/login?lang=en", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("pixiv: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrLoginFailed
	}

	authed, err := s.Authenticated(ctx)
	if err != nil {
		return err
	}
	if !authed {
		return ErrLoginFailed
	}
	return nil
}

// LoginWithEncrypted decrypts an RSA-sealed credential blob and logs in
// with it. The plaintext layout is ":username:password:"; anything else is
// rejected before any network traffic happens.
func (s *Session) LoginWithEncrypted(ctx context.Context, key *rsa.PrivateKey, blob []byte) error {
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, key, blob)
	if err != nil {
		return ErrDecrypt
	}

	parts := strings.Split(string(plain), ":")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return ErrCredentialFormat
	}
	return s.Login(ctx, parts[1], parts[2])
}

// NewSession returns an unauthenticated session for the login flow.
func NewSession() (*Session, error) {
	return newSession()
}

// Authenticated probes the landing page for the logged-in CSRF token.
func (s *Session) Authenticated(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/", nil)
	if err != nil {
		return false, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("pixiv: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	return tokenPattern.Match(body), nil
}

func (s *Session) fetchPostKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.AccountsURL+"/login", nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pixiv: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	m := postKeyPattern.FindSubmatch(body)
	if m == nil {
		return "", ErrLoginFailed
	}
	return string(m[1]), nil
}
