package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/metrics"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// avatarServer serves a png for /ok/*, garbage for /garbage and 404 otherwise.
func avatarServer(t *testing.T, requests *atomic.Int32, gate <-chan struct{}) *httptest.Server {
	data := pngBytes(t)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if gate != nil {
			<-gate
		}
		switch {
		case r.URL.Path == "/garbage":
			w.Write([]byte("definitely not an image"))
		case len(r.URL.Path) > 4 && r.URL.Path[:4] == "/ok/":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newCache(t *testing.T, size int) *Cache {
	t.Helper()
	c, err := New(config.Config{ImageCacheSize: size, ImageFetchTimeout: 5 * time.Second}, metrics.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestGetCachesImage(t *testing.T) {
	var requests atomic.Int32
	server := avatarServer(t, &requests, nil)
	defer server.Close()

	c := newCache(t, 8)
	url := server.URL + "/ok/1"

	img, err := c.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Format != "png" {
		t.Errorf("expected png, got %q", img.Format)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("expected width 4, got %d", img.Bounds().Dx())
	}

	if _, err := c.Get(context.Background(), url); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestGetFailures(t *testing.T) {
	var requests atomic.Int32
	server := avatarServer(t, &requests, nil)
	defer server.Close()

	tests := []struct {
		name string
		url  string
	}{
		{name: "undecodable payload", url: server.URL + "/garbage"},
		{name: "not found", url: server.URL + "/missing"},
		{name: "unreachable host", url: "http://127.0.0.1:1/ok/1"},
		{name: "malformed url", url: "://nope"},
	}

	c := newCache(t, 8)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := c.Get(context.Background(), test.url)
			if !errors.Is(err, ErrNoImage) {
				t.Errorf("expected ErrNoImage, got %v", err)
			}
		})
	}
	if c.Len() != 0 {
		t.Errorf("expected failures not to be cached, got %d entries", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	var requests atomic.Int32
	server := avatarServer(t, &requests, nil)
	defer server.Close()

	c := newCache(t, 2)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "1", "3"} {
		if _, err := c.Get(ctx, server.URL+"/ok/"+id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}

	// 2 was least recently used when 3 arrived.
	if _, err := c.Get(ctx, server.URL+"/ok/2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := requests.Load(); got != 4 {
		t.Errorf("expected 4 requests, got %d", got)
	}
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	var requests atomic.Int32
	gate := make(chan struct{})
	server := avatarServer(t, &requests, gate)
	defer server.Close()

	c := newCache(t, 8)
	url := server.URL + "/ok/1"

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), url)
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestCallerGivingUpDoesNotCancelFetch(t *testing.T) {
	var requests atomic.Int32
	gate := make(chan struct{})
	server := avatarServer(t, &requests, gate)
	defer server.Close()

	c := newCache(t, 8)
	url := server.URL + "/ok/1"

	ctx, cancel := context.WithCancel(context.Background())
	impatient := c.Load(ctx, url)
	patient := c.Load(context.Background(), url)

	cancel()
	res := <-impatient
	if !errors.Is(res.Err, ErrNoImage) || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected ErrNoImage and context.Canceled, got %v", res.Err)
	}

	close(gate)
	res = <-patient
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Image.Format != "png" {
		t.Errorf("expected png, got %q", res.Image.Format)
	}
	if _, ok := <-patient; ok {
		t.Errorf("expected result channel to be closed")
	}
}

func TestNewRejectsZeroSize(t *testing.T) {
	if _, err := New(config.Config{ImageCacheSize: 0}, metrics.New()); err == nil {
		t.Errorf("expected an error for a zero sized cache")
	}
}

func TestNewWithoutMetrics(t *testing.T) {
	var requests atomic.Int32
	server := avatarServer(t, &requests, nil)
	defer server.Close()

	c, err := New(config.Config{ImageCacheSize: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(context.Background(), server.URL+"/ok/1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := c.Get(context.Background(), server.URL+"/garbage"); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
}
