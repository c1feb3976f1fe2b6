package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

func TestLogoPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		filename string
		want     string
	}{
		{"logo.PNG", "tenants/acme/branding/logo_1700000000123.png"},
		{"brand.final.svg", "tenants/acme/branding/logo_1700000000123.svg"},
		{"noextension", "tenants/acme/branding/logo_1700000000123.png"},
		{"", "tenants/acme/branding/logo_1700000000123.png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, LogoPath("acme", tt.filename, now))
		})
	}
}

func TestUploader_URL(t *testing.T) {
	u, err := NewUploader(Config{Endpoint: "cdn.example.com", Bucket: "branding", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/branding/tenants/a/logo.png", u.URL("tenants/a/logo.png"))

	u, err = NewUploader(Config{Endpoint: "localhost:9000", Bucket: "branding", PublicURL: "https://assets.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://assets.example.com/tenants/a/logo.png", u.URL("/tenants/a/logo.png"))
}

func TestUploader_UploadLogo(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewUploader(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "branding",
	})
	require.NoError(t, err)
	u.now = func() time.Time { return time.UnixMilli(42) }

	url, err := u.UploadLogo(context.Background(), "acme", &model.LogoFile{
		Filename:    "logo.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/branding/tenants/acme/branding/logo_42.jpg", url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/branding/tenants/acme/branding/logo_42.jpg", path)
}
