// Package resolver turns a bare URL into best-effort display metadata. It
// never fails the caller: every failure mode along the chain degrades to a
// synthesized title and a placeholder thumbnail. It only ever touches the
// image store, never the catalog.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	maxPageBytes  = 512 << 10
	maxImageBytes = 2 << 20
)

// ImageStore holds resolved thumbnails keyed by canonical URL. Implemented
// by the cache's image store; safe for concurrent use.
type ImageStore interface {
	Get(url string) ([]byte, bool)
	Add(url string, img []byte)
}

// Metadata is the resolved display metadata for a URL. Thumbnail is either
// the fetched preview image or the generic placeholder; it is never nil.
type Metadata struct {
	Title       string
	Description string
	Thumbnail   []byte

	// FromPreview reports whether Title/Description came from a live
	// preview fetch rather than the local fallback chain.
	FromPreview bool
}

// Resolver fetches link previews with a bounded timeout and falls back
// through local strategies on any failure.
type Resolver struct {
	client *http.Client
	images ImageStore
	log    *zap.Logger
}

// New creates a resolver. client's timeout bounds each preview fetch; a nil
// client uses http.DefaultClient.
func New(images ImageStore, client *http.Client, log *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{client: client, images: images, log: log}
}

// Resolve produces display metadata for rawURL. Ordered chain, first
// success wins:
//  1. thumbnail already in the image store: no network call;
//  2. preview fetch (og: tags, <title>, representative image), persisting
//     the image into the store on success;
//  3. synthesized title from the host plus the placeholder image;
//  4. the raw URL string as title when no host parses.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Metadata {
	if img, ok := r.images.Get(rawURL); ok {
		return Metadata{Title: TitleForURL(rawURL), Thumbnail: img}
	}

	meta, err := r.fetchPreview(ctx, rawURL)
	if err == nil {
		r.images.Add(rawURL, meta.Thumbnail)
		return meta
	}
	r.log.Debug("preview fetch failed, falling back",
		zap.String("url", rawURL),
		zap.Error(err))

	return Metadata{Title: TitleForURL(rawURL), Thumbnail: Placeholder()}
}

func (r *Resolver) fetchPreview(ctx context.Context, rawURL string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Metadata{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("preview fetch: status %d", resp.StatusCode)
	}

	page, err := parsePage(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Metadata{}, err
	}
	if page.title == "" {
		return Metadata{}, fmt.Errorf("preview fetch: no metadata in page")
	}
	if page.imageURL == "" {
		return Metadata{}, fmt.Errorf("preview fetch: no representative image")
	}

	img, err := r.fetchImage(ctx, resp.Request.URL, page.imageURL)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{
		Title:       page.title,
		Description: page.description,
		Thumbnail:   img,
		FromPreview: true,
	}, nil
}

// fetchImage downloads the representative image. imageURL may be relative
// to the page URL.
func (r *Resolver) fetchImage(ctx context.Context, pageURL *url.URL, imageURL string) ([]byte, error) {
	ref, err := url.Parse(imageURL)
	if err != nil {
		return nil, err
	}
	abs := imageURL
	if pageURL != nil {
		abs = pageURL.ResolveReference(ref).String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("image fetch: unexpected content type %s", ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image fetch: empty body")
	}
	return data, nil
}

type pageMeta struct {
	title       string
	description string
	imageURL    string
}

// parsePage walks the document for og:title/og:description/og:image, with
// the <title> element as the title fallback.
func parsePage(body io.Reader) (pageMeta, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return pageMeta{}, err
	}

	var meta pageMeta
	var titleTag string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				prop, content := attr(n, "property"), attr(n, "content")
				if prop == "" {
					prop = attr(n, "name")
				}
				switch prop {
				case "og:title":
					meta.title = content
				case "og:description", "description":
					if meta.description == "" {
						meta.description = content
					}
				case "og:image":
					meta.imageURL = content
				}
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					titleTag = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.title == "" {
		meta.title = titleTag
	}
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns the generic application thumbnail used when no preview
// image could be fetched.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		grey := color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, grey)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			panic(err)
		}
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}
