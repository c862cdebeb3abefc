package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/portfolio-cms/apiserver/internal/auth"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/internal/services/servicetest"
	"github.com/portfolio-cms/apiserver/types"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	handler http.Handler
	users   *servicetest.UserRepo
	blogs   *servicetest.ContentRepo[types.Blog]
	photos  *servicetest.ContentRepo[types.Photo]
	objects *servicetest.Objects
	issuer  *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer, err := auth.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		users:   servicetest.NewUserRepo(),
		blogs:   servicetest.NewBlogRepo(),
		photos:  servicetest.NewPhotoRepo(),
		objects: servicetest.NewObjects(),
		issuer:  issuer,
	}

	userService := services.NewUserService(env.users, auth.NewHasher(4), issuer)
	blogService := services.NewBlogService(env.blogs, nil)
	photoService := services.NewPhotoService(env.photos, env.objects, nil)
	verifier := auth.NewVerifier(testSecret)

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", APIStatus)
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, userService, verifier)
		})
		r.Route("/blogs", func(r chi.Router) {
			BlogRouter(r, blogService)
		})
		r.Route("/photos", func(r chi.Router) {
			PhotoRouter(r, photoService)
		})
	})
	r.Get("/uploads/*", ServeUploads(photoService))
	env.handler = r

	return env
}

func (e *testEnv) register(t *testing.T, username, password string) types.User {
	t.Helper()
	apitest.New().
		Handler(e.handler).
		Post("/api/auth/register").
		JSON(fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)).
		Expect(t).
		Status(http.StatusCreated).
		End()

	user, err := e.users.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return user
}

func (e *testEnv) bearer(t *testing.T, userID int) string {
	t.Helper()
	token, err := e.issuer.Issue(userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestAPIStatusAndFallbacks(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/api").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"API is running"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/does/not/exist").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"route not found"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Patch("/api/blogs/1").
		Expect(t).
		Status(http.StatusMethodNotAllowed).
		Assert(jsonpath.Equal("$.error", "method not allowed")).
		End()
}

func TestRequireAuth_Stages(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "admin", "password123")

	tests := []struct {
		name   string
		header string
		status int
		error  string
	}{
		{"missing header", "", http.StatusUnauthorized, "no token, authorization denied"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "invalid token format, authorization denied"},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized, "token is malformed or invalid"},
		{
			"wrong secret",
			"Bearer " + func() string {
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
					UserID: user.ID,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
				}).SignedString([]byte("other-secret"))
				require.NoError(t, err)
				return tok
			}(),
			http.StatusUnauthorized,
			"token is malformed or invalid",
		},
		{
			"missing userId",
			"Bearer " + signClaims(t, jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
			http.StatusUnauthorized,
			"invalid token: userId missing",
		},
		{
			"expired",
			"Bearer " + signClaims(t, auth.Claims{
				UserID: user.ID,
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				},
			}),
			http.StatusUnauthorized,
			"token has expired",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := apitest.New().Handler(env.handler).Get("/api/auth/me")
			if tc.header != "" {
				req = req.Header("Authorization", tc.header)
			}
			req.Expect(t).
				Status(tc.status).
				Assert(jsonpath.Equal("$.error", tc.error)).
				End()
		})
	}

	apitest.New().
		Handler(env.handler).
		Get("/api/auth/me").
		Header("Authorization", env.bearer(t, user.ID)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "admin")).
		Assert(jsonpath.NotPresent("$.passwordHash")).
		Assert(jsonpath.NotPresent("$.PasswordHash")).
		End()
}

func TestRequireAuth_MissingSecret(t *testing.T) {
	called := false
	protected := RequireAuth(auth.NewVerifier(""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	apitest.Handler(protected).
		Get("/").
		Header("Authorization", "Bearer anything").
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"error":"server configuration error"}`).
		End()
	require.False(t, called)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/register").
		JSON(`{"username":"admin","password":"password123"}`).
		Expect(t).
		Status(http.StatusCreated).
		Body(`{"message":"user registered"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/register").
		JSON(`{"username":"admin","password":"different"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"user already exists"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/register").
		JSON(`{"username":"","password":"x"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/register").
		Body(`{not json`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"invalid request body"}`).
		End()

	require.Equal(t, 1, env.users.Count())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin", "password123")

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/login").
		JSON(`{"username":"admin","password":"password123"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.token")).
		End()

	for _, body := range []string{
		`{"username":"admin","password":"wrong-password"}`,
		`{"username":"nobody","password":"password123"}`,
	} {
		apitest.New().
			Handler(env.handler).
			Post("/api/auth/login").
			JSON(body).
			Expect(t).
			Status(http.StatusBadRequest).
			Body(`{"error":"invalid credentials"}`).
			End()
	}
}

func TestUpdateCredentials(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "admin", "password123")
	env.register(t, "other", "password123")
	bearer := env.bearer(t, user.ID)

	apitest.New().
		Handler(env.handler).
		Put("/api/auth/admin").
		JSON(`{"username":"owner","password":"new-password"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(env.handler).
		Put("/api/auth/admin").
		Header("Authorization", bearer).
		JSON(`{"username":"owner","password":"new-password"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.message", "admin credentials updated")).
		Assert(jsonpath.Equal("$.user.username", "owner")).
		Assert(jsonpath.NotPresent("$.user.passwordHash")).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/login").
		JSON(`{"username":"owner","password":"new-password"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	tests := []struct {
		name  string
		body  string
		error string
	}{
		{"no fields", `{}`, "at least one field (username or password) must be provided"},
		{"short password", `{"password":"short"}`, "password must be at least 8 characters long"},
		{"taken username", `{"username":"other"}`, "username already taken"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			apitest.New().
				Handler(env.handler).
				Put("/api/auth/admin").
				Header("Authorization", bearer).
				JSON(tc.body).
				Expect(t).
				Status(http.StatusBadRequest).
				Assert(jsonpath.Equal("$.error", tc.error)).
				End()
		})
	}

	stored, err := env.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "owner", stored.Username)

	env.users.Remove(user.ID)
	apitest.New().
		Handler(env.handler).
		Put("/api/auth/admin").
		Header("Authorization", bearer).
		JSON(`{"username":"ghost"}`).
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"user not found"}`).
		End()
}

func TestOverlongPasswordRejected(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "admin", "password123")
	tooLong := strings.Repeat("p", services.MaxPasswordBytes+1)

	apitest.New().
		Handler(env.handler).
		Post("/api/auth/register").
		JSON(fmt.Sprintf(`{"username":"second","password":%q}`, tooLong)).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"password must be at most 72 bytes long"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Put("/api/auth/admin").
		Header("Authorization", env.bearer(t, user.ID)).
		JSON(fmt.Sprintf(`{"password":%q}`, tooLong)).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"password must be at most 72 bytes long"}`).
		End()

	// Exactly at the limit is still accepted.
	env.register(t, "third", strings.Repeat("p", services.MaxPasswordBytes))
	require.Equal(t, 2, env.users.Count())
}

func TestResponsesUseCamelCaseFields(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/api/blogs").
		JSON(`{"title":"Hello","content":"World"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Present("$.createdAt")).
		Assert(jsonpath.Present("$.updatedAt")).
		Assert(jsonpath.NotPresent("$.created_at")).
		Assert(jsonpath.NotPresent("$.updated_at")).
		End()

	user := env.register(t, "admin", "password123")
	apitest.New().
		Handler(env.handler).
		Get("/api/auth/me").
		Header("Authorization", env.bearer(t, user.ID)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.createdAt")).
		Assert(jsonpath.NotPresent("$.created_at")).
		End()
}

func TestBlogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/api/blogs").
		JSON(`{"title":"First","content":"Hello"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.title", "First")).
		Assert(jsonpath.Equal("$.author", "Admin")).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/blogs").
		JSON(`{"title":"Second","content":"World","author":"Jane"}`).
		Expect(t).
		Status(http.StatusCreated).
		End()

	apitest.New().
		Handler(env.handler).
		Post("/api/blogs").
		JSON(`{"content":"no title"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"title is required"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/blogs").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Total-Count", "2").
		Assert(jsonpath.Len("$", 2)).
		Assert(jsonpath.Equal("$[0].title", "Second")).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/blogs").
		Query("page", "2").
		Query("limit", "1").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Total-Count", "2").
		Assert(jsonpath.Len("$", 1)).
		Assert(jsonpath.Equal("$[0].title", "First")).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/blogs").
		Query("page", "0").
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	apitest.New().
		Handler(env.handler).
		Put("/api/blogs/1").
		JSON(`{"content":"Edited"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.title", "First")).
		Assert(jsonpath.Equal("$.content", "Edited")).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/blogs/abc").
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"invalid id"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Put("/api/blogs/99").
		JSON(`{"title":"x"}`).
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"blog not found"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Delete("/api/blogs/1").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"blog deleted"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/blogs/1").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

type testFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *testFile) (body, contentType string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	if file != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, file.name))
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.String(), mw.FormDataContentType()
}

func TestPhotoEndpoints(t *testing.T) {
	env := newTestEnv(t)
	png := []byte("\x89PNG\r\n\x1a\nimage-bytes")

	body, contentType := multipartBody(t, map[string]string{
		"title":    "Sunset",
		"category": "nature",
	}, &testFile{name: "sunset.png", contentType: "image/png", data: png})
	apitest.New().
		Handler(env.handler).
		Post("/api/photos").
		Header("Content-Type", contentType).
		Body(body).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.title", "Sunset")).
		Assert(jsonpath.Equal("$.category", "nature")).
		Assert(jsonpath.Matches("$.imageUrl", `^/uploads/photos/[0-9a-f-]{36}\.png$`)).
		Assert(jsonpath.NotPresent("$.objectKey")).
		End()

	photo, err := env.photos.Get(context.Background(), 1)
	require.NoError(t, err)

	apitest.New().
		Handler(env.handler).
		Get(photo.ImageURL).
		Expect(t).
		Status(http.StatusOK).
		Header("Content-Type", "image/png").
		Body(string(png)).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/api/photos").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Total-Count", "1").
		Assert(jsonpath.Len("$", 1)).
		End()

	body, contentType = multipartBody(t, map[string]string{"description": "golden hour"}, nil)
	apitest.New().
		Handler(env.handler).
		Put("/api/photos/1").
		Header("Content-Type", contentType).
		Body(body).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.title", "Sunset")).
		Assert(jsonpath.Equal("$.description", "golden hour")).
		Assert(jsonpath.Equal("$.imageUrl", photo.ImageURL)).
		End()

	apitest.New().
		Handler(env.handler).
		Delete("/api/photos/1").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"photo deleted"}`).
		End()
	require.Empty(t, env.objects.Keys())

	apitest.New().
		Handler(env.handler).
		Get(photo.ImageURL).
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"file not found"}`).
		End()

	apitest.New().
		Handler(env.handler).
		Delete("/api/photos/1").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"photo not found"}`).
		End()
}

func TestCreatePhoto_RejectsBadUploads(t *testing.T) {
	tests := []struct {
		name  string
		file  *testFile
		error string
	}{
		{"no file", nil, "no file uploaded"},
		{
			"wrong type",
			&testFile{name: "notes.txt", contentType: "text/plain", data: []byte("hello")},
			"only .jpg, .jpeg, and .png files are allowed",
		},
		{
			"extension only",
			&testFile{name: "fake.png", contentType: "application/pdf", data: []byte("%PDF")},
			"only .jpg, .jpeg, and .png files are allowed",
		},
		{
			"too large",
			&testFile{name: "big.jpg", contentType: "image/jpeg", data: make([]byte, services.MaxImageBytes+1)},
			"file too large: maximum size is 5 MB",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			body, contentType := multipartBody(t, map[string]string{"title": "t"}, tc.file)

			apitest.New().
				Handler(env.handler).
				Post("/api/photos").
				Header("Content-Type", contentType).
				Body(body).
				Expect(t).
				Status(http.StatusBadRequest).
				Assert(jsonpath.Equal("$.error", tc.error)).
				End()

			require.Zero(t, env.photos.Len())
			require.Empty(t, env.objects.Keys())
		})
	}
}

func TestCreatePhoto_NotMultipart(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/api/photos").
		JSON(`{"title":"t"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"invalid multipart form"}`).
		End()
}

func TestServeUploads_UnknownKey(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/uploads/photos/missing.png").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestRecoverer(t *testing.T) {
	panicking := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	apitest.Handler(panicking).
		Get("/").
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"error":"internal server error"}`).
		End()
}
