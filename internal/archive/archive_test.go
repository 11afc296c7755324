package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkalytics/internal/config"
	"alkalytics/internal/files"
)

type recordedPut struct {
	path string
	body string
}

func fakeS3(t *testing.T) (*httptest.Server, func() []recordedPut) {
	t.Helper()
	var mu sync.Mutex
	var puts []recordedPut
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{path: r.URL.Path, body: string(body)})
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedPut {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedPut(nil), puts...)
	}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, a)
	assert.NoError(t, a.Archive(context.Background(), "req", files.File{}))

	_, err = New(context.Background(), config.ArchiveConfig{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	a := &S3{prefix: "uploads"}
	at := time.Date(2024, 8, 3, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	assert.Equal(t, "uploads/2024/08/04/req-1/run 1.csv", a.Key("req-1", "run 1.csv", at))

	a.prefix = ""
	assert.Equal(t, "2024/08/04/req-1/run.csv", a.Key("req-1", "run.csv", at))
}

func TestS3Archive(t *testing.T) {
	srv, puts := fakeS3(t)

	a, err := NewS3(context.Background(), config.ArchiveConfig{
		Enabled:         true,
		Bucket:          "raw",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		Prefix:          "uploads",
		UsePathStyle:    true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, nil)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 8, 3, 12, 0, 0, 0, time.UTC) }

	scratch, err := files.NewScratch(t.TempDir(), nil)
	require.NoError(t, err)
	defer scratch.Close()
	f, err := scratch.Write("run 1.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	require.NoError(t, a.Archive(context.Background(), "req-1", f))

	got := puts()
	require.Len(t, got, 1)
	assert.Equal(t, "/raw/uploads/2024/08/03/req-1/run 1.csv", got[0].path)
	assert.Contains(t, got[0].body, "1,2")

	missing := files.File{Name: "gone.csv", Path: filepath.Join(t.TempDir(), "gone.csv")}
	assert.Error(t, a.Archive(context.Background(), "req-1", missing))
}

func TestS3ArchiveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a, err := NewS3(context.Background(), config.ArchiveConfig{
		Bucket:          "raw",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, nil, func(o *s3.Options) { o.RetryMaxAttempts = 1 })
	require.NoError(t, err)

	scratch, err := files.NewScratch(t.TempDir(), nil)
	require.NoError(t, err)
	defer scratch.Close()
	f, err := scratch.Write("x.csv", []byte("x"))
	require.NoError(t, err)

	assert.Error(t, a.Archive(context.Background(), "req-2", f))
}
