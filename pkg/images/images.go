package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/metrics"
	"github.com/georgemblack/feed-sync/pkg/util"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxImageBytes = 5 << 20

// ErrNoImage is the only failure callers see. The cause is joined to it.
var ErrNoImage = errors.New("no image")

// Image is a decoded image along with the bytes it was decoded from.
type Image struct {
	image.Image
	Format string
	Data   []byte
}

// Result is delivered by Load.
type Result struct {
	Image Image
	Err   error
}

// Cache maps URLs to decoded images. It holds at most a fixed number of entries,
// evicting the least recently used, and lives for the process lifetime only.
type Cache struct {
	client  *http.Client
	entries *lru.Cache[string, Image]
	flights singleflight.Group
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
}

func New(cfg config.Config, m *metrics.Metrics) (*Cache, error) {
	if m == nil {
		m = metrics.New()
	}

	entries, err := lru.New[string, Image](cfg.ImageCacheSize)
	if err != nil {
		return nil, util.WrapErr("failed to create image cache", err)
	}

	limit := rate.Inf
	burst := 1
	if cfg.ImageFetchRPS > 0 {
		limit = rate.Limit(cfg.ImageFetchRPS)
		burst = cfg.ImageFetchRPS
	}

	timeout := cfg.ImageFetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Cache{
		client:  &http.Client{},
		entries: entries,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		metrics: m,
	}, nil
}

// Get returns the image for url, fetching and decoding it on a miss.
// Concurrent misses for the same url share one fetch. A caller whose context ends
// stops waiting without cancelling the fetch for the others.
func (c *Cache) Get(ctx context.Context, url string) (Image, error) {
	if img, ok := c.entries.Get(url); ok {
		c.metrics.ObserveImageLookup(metrics.ImageHit)
		return img, nil
	}
	c.metrics.ObserveImageLookup(metrics.ImageMiss)

	flight := c.flights.DoChan(url, func() (any, error) {
		// A flight that started just after another one finished finds the entry here.
		if img, ok := c.entries.Get(url); ok {
			return img, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		img, err := c.fetch(fetchCtx, url)
		if err != nil {
			return nil, err
		}
		c.entries.Add(url, img)
		return img, nil
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			c.metrics.ObserveImageLookup(metrics.ImageFailed)
			slog.Debug("failed to load image", "url", url, "error", res.Err)
			return Image{}, errors.Join(ErrNoImage, res.Err)
		}
		return res.Val.(Image), nil
	case <-ctx.Done():
		return Image{}, errors.Join(ErrNoImage, ctx.Err())
	}
}

// Load runs Get in the background. The result arrives on the returned channel,
// which the caller receives from on its own goroutine; the channel is then closed.
func (c *Cache) Load(ctx context.Context, url string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, err := c.Get(ctx, url)
		out <- Result{Image: img, Err: err}
	}()
	return out
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) fetch(ctx context.Context, url string) (Image, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Image{}, util.WrapErr("rate limiter wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, util.WrapErr("failed to create request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Image{}, util.WrapErr("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Image{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Image{}, util.WrapErr("failed to read image body", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, util.WrapErr("failed to decode image", err)
	}

	return Image{Image: decoded, Format: format, Data: data}, nil
}
