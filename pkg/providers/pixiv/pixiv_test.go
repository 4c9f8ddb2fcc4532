package pixiv

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func testSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := newSession()
	if err != nil {
		t.Fatal(err)
	}
	s.BaseURL = srv.URL
	s.AccountsURL = srv.URL
	return s, srv
}

func TestFromSessionFile_MissingFile(t *testing.T) {
	_, err := FromSessionFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSessionFile_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := newSession()
	if err != nil {
		t.Fatal(err)
	}
	s.restoreCookies(sessionFile{Cookies: []sessionCookie{
		{Name: "PHPSESSID", Value: "abc123", Domain: ".pixiv.net", Path: "/"},
	}})
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 0600", perm)
	}

	restored, err := FromSessionFile(path)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	base, _ := url.Parse(restored.BaseURL)
	var found bool
	for _, c := range restored.jar.Cookies(base) {
		if c.Name == "PHPSESSID" && c.Value == "abc123" {
			found = true
		}
	}
	if !found {
		t.Error("restored jar is missing the session cookie")
	}
}

func TestIllustInfo(t *testing.T) {
	s, _ := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ajax/illust/92339056" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"error":false,"body":{
			"id":"92339056","title":"untitled","illustType":1,
			"createDate":"2021-08-28T12:00:00+09:00","xRestrict":1,
			"urls":{"original":"https://i.pximg.net/img-original/img/p0.png"},
			"userId":"11","userName":"someone","pageCount":3,
			"seriesNavData":{"title":"a series"}}}`))
	}))

	illust, err := s.IllustInfo(context.Background(), "92339056")
	if err != nil {
		t.Fatalf("illust: %v", err)
	}
	if illust.Title != "untitled" || illust.PageCount != 3 {
		t.Errorf("illust = %+v", illust)
	}
	if !illust.Restricted() {
		t.Error("xRestrict flag must mark the work restricted")
	}
	if illust.TypeString() != "manga" {
		t.Errorf("type = %q, want manga", illust.TypeString())
	}
	if illust.SeriesNav == nil || illust.SeriesNav.Title != "a series" {
		t.Errorf("series = %+v", illust.SeriesNav)
	}
	if illust.CreatedAt().IsZero() {
		t.Error("createDate should parse")
	}
}

func TestIllustInfo_APIError(t *testing.T) {
	s, _ := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":true,"message":"該当作品は削除されたか、存在しない作品IDです。"}`))
	}))

	_, err := s.IllustInfo(context.Background(), "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDownload_SetsReferer(t *testing.T) {
	s, srv := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://www.pixiv.net/i/1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("image-bytes"))
	}))

	data, err := s.Download(context.Background(), srv.URL+"/img.png", "https://www.pixiv.net/i/1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestLoginWithEncrypted_MalformedCredential(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("no separators here"))
	if err != nil {
		t.Fatal(err)
	}

	s, _ := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("malformed credential must not reach the network")
	}))
	if err := s.LoginWithEncrypted(context.Background(), key, blob); !errors.Is(err, ErrCredentialFormat) {
		t.Fatalf("err = %v, want ErrCredentialFormat", err)
	}
}

func TestLogin(t *testing.T) {
	var sawPostKey string
	s, _ := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Write([]byte(`<input type="hidden" name="post_key" value="deadbeef01">`))
		case "/api/login":
			r.ParseForm()
			sawPostKey = r.FormValue("post_key")
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "sess"})
			w.Write([]byte(`{}`))
		case "/":
			w.Write([]byte(`<script>pixiv.context.token = "cafe01";</script>`))
		default:
			http.NotFound(w, r)
		}
	}))

	if err := s.Login(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if sawPostKey != "deadbeef01" {
		t.Errorf("post_key = %q, want scraped value", sawPostKey)
	}
}
