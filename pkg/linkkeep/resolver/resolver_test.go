package resolver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeImageStore struct {
	mu     sync.Mutex
	images map[string][]byte
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: make(map[string][]byte)}
}

func (s *fakeImageStore) Get(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[url]
	return img, ok
}

func (s *fakeImageStore) Add(url string, img []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[url] = img
}

type errorTransport struct{}

func (errorTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("simulated network failure")
}

type failIfCalledTransport struct{ t *testing.T }

func (ft failIfCalledTransport) RoundTrip(*http.Request) (*http.Response, error) {
	ft.t.Error("Unexpected network call")
	return nil, fmt.Errorf("unexpected call")
}

func TestResolvePreviewSuccess(t *testing.T) {
	imgBytes := []byte("fake-png-bytes")
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<meta property="og:title" content="A Fine Article"/>
			<meta property="og:description" content="Worth reading."/>
			<meta property="og:image" content="/thumb.png"/>
			<title>fallback title</title>
		</head><body></body></html>`)
	})
	mux.HandleFunc("/thumb.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imgBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newFakeImageStore()
	r := New(store, srv.Client(), zap.NewNop())

	pageURL := srv.URL + "/article"
	meta := r.Resolve(context.Background(), pageURL)

	if !meta.FromPreview {
		t.Fatal("Expected preview resolution to succeed")
	}
	if meta.Title != "A Fine Article" {
		t.Errorf("Expected og:title, got %q", meta.Title)
	}
	if meta.Description != "Worth reading." {
		t.Errorf("Expected og:description, got %q", meta.Description)
	}
	if !bytes.Equal(meta.Thumbnail, imgBytes) {
		t.Error("Expected fetched thumbnail bytes")
	}
	if stored, ok := store.Get(pageURL); !ok || !bytes.Equal(stored, imgBytes) {
		t.Error("Expected image persisted in the store keyed by page URL")
	}
}

func TestResolveTitleTagFallbackWithinPreview(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<title>Plain Title</title>
			<meta property="og:image" content="/i.png"/>
		</head></html>`)
	})
	mux.HandleFunc("/i.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{1, 2, 3})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := New(newFakeImageStore(), srv.Client(), zap.NewNop())
	meta := r.Resolve(context.Background(), srv.URL+"/page")

	if !meta.FromPreview {
		t.Fatal("Expected preview resolution to succeed")
	}
	if meta.Title != "Plain Title" {
		t.Errorf("Expected <title> fallback, got %q", meta.Title)
	}
}

func TestResolveNetworkFailureKnownDomain(t *testing.T) {
	client := &http.Client{Transport: errorTransport{}}
	r := New(newFakeImageStore(), client, zap.NewNop())

	meta := r.Resolve(context.Background(), "https://naver.com/webtoon/123")

	if meta.FromPreview {
		t.Fatal("Expected fallback, not a preview result")
	}
	if meta.Title != "네이버" {
		t.Errorf("Expected mapped display name, got %q", meta.Title)
	}
	if !bytes.Equal(meta.Thumbnail, Placeholder()) {
		t.Error("Expected placeholder thumbnail on fallback")
	}
}

func TestResolveMissingImageFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:title" content="No Image Here"/></head></html>`)
	}))
	defer srv.Close()

	r := New(newFakeImageStore(), srv.Client(), zap.NewNop())
	meta := r.Resolve(context.Background(), srv.URL+"/x")

	if meta.FromPreview {
		t.Error("Page without a representative image should fall through")
	}
	if !bytes.Equal(meta.Thumbnail, Placeholder()) {
		t.Error("Expected placeholder thumbnail")
	}
}

func TestResolveCachedImageSkipsNetwork(t *testing.T) {
	store := newFakeImageStore()
	cached := []byte("already-here")
	store.Add("https://example.com/a", cached)

	client := &http.Client{Transport: failIfCalledTransport{t}}
	r := New(store, client, zap.NewNop())

	meta := r.Resolve(context.Background(), "https://example.com/a")

	if !bytes.Equal(meta.Thumbnail, cached) {
		t.Error("Expected cached thumbnail returned directly")
	}
	if meta.Title != "Example" {
		t.Errorf("Expected synthesized title, got %q", meta.Title)
	}
}

func TestResolveUnparseableURL(t *testing.T) {
	client := &http.Client{Transport: errorTransport{}}
	r := New(newFakeImageStore(), client, zap.NewNop())

	meta := r.Resolve(context.Background(), "::::")

	if meta.Title != "::::" {
		t.Errorf("Expected raw URL as title, got %q", meta.Title)
	}
}
