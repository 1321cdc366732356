package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/catalog"
	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/internal/events"
	"github.com/bookstore/storefront/internal/metrics"
	"github.com/bookstore/storefront/internal/repo"
	"github.com/bookstore/storefront/internal/uploads"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func setupTestServer(t *testing.T, requireLogin bool) *testClient {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()

	usersDB, err := db.Connect(filepath.Join(dir, "user.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { usersDB.Close() })
	require.NoError(t, db.RunUserMigrations(usersDB))

	booksDB, err := db.Connect(filepath.Join(dir, "books.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { booksDB.Close() })
	require.NoError(t, db.RunBookMigrations(booksDB))

	uploadDir := filepath.Join(dir, "images")
	images, err := uploads.NewImageStore(uploadDir, 1<<20, log)
	require.NoError(t, err)

	authManager := auth.NewManager(
		repo.NewUserRepository(usersDB, log),
		auth.NewTokenSigner("test-secret"),
		time.Hour,
		log,
		auth.WithHashParams(auth.HashParams{Memory: 1024, Iterations: 1, Threads: 1, SaltLength: 16, KeyLength: 32}),
	)
	catalogService := catalog.NewService(repo.NewCatalogRepository(booksDB, log), images, events.NopPublisher{}, log)

	server := NewServer(authManager, catalogService, metrics.New(catalogService.Stats), Options{
		RequireLogin:   requireLogin,
		UploadDir:      uploadDir,
		MaxUploadBytes: 1 << 20,
		FlashSecret:    "test-secret",
	}, log)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{
		t:    t,
		base: ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testClient) do(req *http.Request) (int, http.Header, map[string]interface{}) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	var view map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(body, &view))
	}
	return resp.StatusCode, resp.Header, view
}

func (c *testClient) get(path string) (int, http.Header, map[string]interface{}) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, values url.Values) (int, http.Header, map[string]interface{}) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(values.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) postMultipart(path string, fields map[string]string, filename string, content []byte) (int, http.Header, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(c.t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("img", filename)
		require.NoError(c.t, err)
		_, err = part.Write(content)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, w.Close())

	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

func (c *testClient) register(email, password, name string) (int, http.Header) {
	code, header, _ := c.postForm("/register", url.Values{"email": {email}, "password": {password}, "name": {name}})
	return code, header
}

func duneFields() map[string]string {
	return map[string]string{
		"title":        "Dune",
		"author":       "Herbert",
		"date":         "1965-01-01",
		"description":  "...",
		"trade_price":  "10.0",
		"retail_price": "20.0",
		"quantity":     "5",
	}
}

func storeBooks(t *testing.T, c *testClient) []map[string]interface{} {
	t.Helper()
	code, _, view := c.get("/store")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "store", view["view"])

	raw := view["books"].([]interface{})
	books := make([]map[string]interface{}, len(raw))
	for i, b := range raw {
		books[i] = b.(map[string]interface{})
	}
	return books
}

func TestAuthScenario(t *testing.T) {
	c := setupTestServer(t, true)

	code, header := c.register("a@x.com", "pw1", "Alice")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/store", header.Get("Location"))

	_, _, view := c.get("/")
	assert.Equal(t, "home", view["view"])
	assert.Equal(t, true, view["logged_in"])
	assert.Equal(t, "Alice", view["user"])

	code, header = c.register("a@x.com", "pw1", "Alice")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", header.Get("Location"))
	_, _, view = c.get("/login")
	assert.Equal(t, []interface{}{flashDuplicateEmail}, view["flashes"])

	// Flashes are shown once.
	_, _, view = c.get("/login")
	assert.Empty(t, view["flashes"])

	code, header, _ = c.get("/logout")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", header.Get("Location"))
	_, _, view = c.get("/")
	assert.Equal(t, false, view["logged_in"])

	code, header, _ = c.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", header.Get("Location"))
	_, _, view = c.get("/login")
	assert.Equal(t, []interface{}{flashInvalidPassword}, view["flashes"])
	assert.Equal(t, false, view["logged_in"])

	code, header, _ = c.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/store", header.Get("Location"))
	_, _, view = c.get("/")
	assert.Equal(t, true, view["logged_in"])
}

func TestLoginUnknownEmail(t *testing.T) {
	c := setupTestServer(t, true)

	code, header, _ := c.postForm("/login", url.Values{"email": {"nobody@x.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", header.Get("Location"))

	_, _, view := c.get("/login")
	assert.Equal(t, []interface{}{flashUnknownEmail}, view["flashes"])
}

func TestRegisterValidation(t *testing.T) {
	c := setupTestServer(t, true)

	code, _, view := c.postForm("/register", url.Values{"name": {"Alice"}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "register", view["view"])
	assert.Len(t, view["errors"], 2)
}

func TestForgedFlashIsIgnored(t *testing.T) {
	c := setupTestServer(t, true)

	u, err := url.Parse(c.base)
	require.NoError(t, err)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, flashClaims{
		Flashes:        []string{"Your account is locked, call 555-0100"},
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Minute).Unix()},
	}).SignedString([]byte("not-the-secret"))
	require.NoError(t, err)

	for _, value := range []string{
		base64.RawURLEncoding.EncodeToString([]byte(`["planted notice"]`)),
		wrongKey,
	} {
		c.http.Jar.SetCookies(u, []*http.Cookie{{Name: flashCookie, Value: value, Path: "/"}})

		code, _, view := c.get("/login")
		assert.Equal(t, http.StatusOK, code)
		assert.Empty(t, view["flashes"], value)
		assert.Empty(t, c.http.Jar.Cookies(u))
	}

	// A genuine flash still round-trips.
	c.postForm("/login", url.Values{"email": {"nobody@x.com"}, "password": {"pw"}})
	_, _, view := c.get("/login")
	assert.Equal(t, []interface{}{flashUnknownEmail}, view["flashes"])
}

func TestLogoutRequiresSession(t *testing.T) {
	c := setupTestServer(t, true)

	code, header, _ := c.get("/logout")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", header.Get("Location"))
}

func TestStaleSessionCookieIsIgnored(t *testing.T) {
	c := setupTestServer(t, true)

	u, err := url.Parse(c.base)
	require.NoError(t, err)
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: "forged", Path: "/"}})

	code, _, view := c.get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, view["logged_in"])
	assert.Empty(t, c.http.Jar.Cookies(u))
}

func TestCatalogScenario(t *testing.T) {
	c := setupTestServer(t, true)
	c.register("a@x.com", "pw1", "Alice")

	code, header, _ := c.postMultipart("/add", duneFields(), "dune cover.png", pngHeader)
	require.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/store", header.Get("Location"))

	books := storeBooks(t, c)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0]["title"])
	assert.Equal(t, float64(5), books[0]["quantity"])
	assert.Equal(t, "1965-01-01", books[0]["date"])
	assert.True(t, strings.HasSuffix(books[0]["image_url"].(string), "-dune_cover.png"))
	id := fmt.Sprint(books[0]["id"])

	code, _, _ = c.get(books[0]["image_url"].(string))
	assert.Equal(t, http.StatusOK, code)

	code, _, view := c.get("/edit?id=" + id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Dune", view["book"].(map[string]interface{})["title"])

	code, _, _ = c.postForm("/edit", url.Values{"id": {id}, "quantity": {"3"}})
	assert.Equal(t, http.StatusSeeOther, code)

	books = storeBooks(t, c)
	require.Len(t, books, 1)
	assert.Equal(t, float64(3), books[0]["quantity"])
	assert.Equal(t, float64(20), books[0]["retail_price"])

	code, _, _ = c.get("/delete?id=" + id)
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Empty(t, storeBooks(t, c))
}

func TestAddValidationAndDuplicate(t *testing.T) {
	c := setupTestServer(t, false)

	fields := duneFields()
	delete(fields, "author")
	fields["quantity"] = "lots"
	code, _, view := c.postMultipart("/add", fields, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "add", view["view"])

	var failed []string
	for _, e := range view["errors"].([]interface{}) {
		failed = append(failed, e.(map[string]interface{})["field"].(string))
	}
	assert.ElementsMatch(t, []string{"author", "image", "quantity"}, failed)
	assert.Empty(t, storeBooks(t, c))

	code, _, _ = c.postMultipart("/add", duneFields(), "dune.png", pngHeader)
	require.Equal(t, http.StatusSeeOther, code)

	code, _, view = c.postMultipart("/add", duneFields(), "dune.png", pngHeader)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "add", view["view"])
	assert.Len(t, storeBooks(t, c), 1)
}

func TestEditAndDeleteMissingBook(t *testing.T) {
	c := setupTestServer(t, false)

	code, _, view := c.get("/edit?id=42")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "edit", view["view"])

	code, _, _ = c.postForm("/edit", url.Values{"id": {"42"}, "quantity": {"1"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = c.get("/delete?id=42")
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = c.get("/delete?id=abc")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _, _ = c.postForm("/edit?id=42", url.Values{"quantity": {"-2"}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestCatalogMutationsRequireLogin(t *testing.T) {
	c := setupTestServer(t, true)

	for _, path := range []string{"/add", "/edit?id=1", "/delete?id=1"} {
		code, header, _ := c.get(path)
		assert.Equal(t, http.StatusSeeOther, code, path)
		assert.Equal(t, "/login", header.Get("Location"), path)
	}

	code, _, _ := c.get("/store")
	assert.Equal(t, http.StatusOK, code)
}

func TestCatalogOpenWhenLoginNotRequired(t *testing.T) {
	c := setupTestServer(t, false)

	code, _, view := c.get("/add")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "add", view["view"])
}

func TestCart(t *testing.T) {
	c := setupTestServer(t, false)

	code, _, view := c.get("/cart")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cart", view["view"])
	assert.Equal(t, false, view["logged_in"])
}
