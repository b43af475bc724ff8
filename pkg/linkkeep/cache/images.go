package cache

import lru "github.com/hashicorp/golang-lru/v2"

// ImageCache is the thumbnail store, keyed by canonical URL. It is touched
// from the main context and from background resolver completions, so it
// carries its own lock (inside the LRU) separate from the snapshot lock:
// image reads never contend with snapshot writes.
type ImageCache struct {
	lru *lru.Cache[string, []byte]
}

// NewImageCache creates a thumbnail store holding at most size images.
func NewImageCache(size int) (*ImageCache, error) {
	l, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ImageCache{lru: l}, nil
}

func (c *ImageCache) Get(url string) ([]byte, bool) {
	return c.lru.Get(url)
}

func (c *ImageCache) Add(url string, img []byte) {
	c.lru.Add(url, img)
}

func (c *ImageCache) Remove(url string) {
	c.lru.Remove(url)
}

func (c *ImageCache) Contains(url string) bool {
	return c.lru.Contains(url)
}
