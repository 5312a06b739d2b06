// Package testutil provides a mock tile resolver for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// ResolverConfig describes the document a mock Resolver serves.
type ResolverConfig struct {
	DocumentID string
	Pages      int      // content pages 1..Pages exist
	Covers     []string // cover markers that exist, e.g. "C1", "C3"
	Rows, Cols int
	TileWidth  int
	TileHeight int

	// Fail, when set, is consulted before serving each existing tile.
	// attempt counts prior requests for the same tile, starting at 0.
	// A non-zero return is written as the response status.
	Fail func(page string, row, col, attempt int) int
}

// Resolver is an httptest server speaking the tile resolver protocol:
// 200 with PNG bytes for existing tiles, 404 past any edge.
type Resolver struct {
	cfg    ResolverConfig
	server *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	requests int
	pages    map[string]int
}

// NewResolver starts a mock resolver, closed automatically on test cleanup.
func NewResolver(t testing.TB, cfg ResolverConfig) *Resolver {
	t.Helper()

	if cfg.DocumentID == "" {
		cfg.DocumentID = "doc"
	}
	if cfg.TileWidth == 0 {
		cfg.TileWidth = 8
	}
	if cfg.TileHeight == 0 {
		cfg.TileHeight = 6
	}

	r := &Resolver{
		cfg:   cfg,
		hits:  make(map[string]int),
		pages: make(map[string]int),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serveTile))
	t.Cleanup(r.server.Close)
	return r
}

// URLTemplate returns a template usable by resolver.Client.
func (r *Resolver) URLTemplate() string {
	return r.server.URL + "/tile?doc={book_id}&urn_page={long_page_nr}&pg_id={page_nr}&row={row}&col={col}"
}

// Requests returns the total number of requests served.
func (r *Resolver) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// PageRequests returns the number of requests made for one page token
// in its short form ("3", "C1").
func (r *Resolver) PageRequests(page string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages[page]
}

// TileColor is the solid fill of the tile at (row, col) of page.
// Every tile of every page gets a distinct colour so placement can be checked.
func TileColor(page string, row, col int) color.RGBA {
	return color.RGBA{
		R: uint8(40*row + 10),
		G: uint8(40*col + 10),
		B: pageCode(page),
		A: 255,
	}
}

func pageCode(page string) uint8 {
	if n, err := strconv.Atoi(page); err == nil {
		return uint8(n * 7)
	}
	var sum uint8 = 128
	for _, ch := range []byte(page) {
		sum += ch
	}
	return sum
}

func (r *Resolver) exists(page string, row, col int) bool {
	if row < 0 || col < 0 || row >= r.cfg.Rows || col >= r.cfg.Cols {
		return false
	}
	if n, err := strconv.Atoi(page); err == nil {
		return n >= 1 && n <= r.cfg.Pages
	}
	for _, c := range r.cfg.Covers {
		if c == page {
			return true
		}
	}
	return false
}

func (r *Resolver) serveTile(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page := q.Get("pg_id")
	row, rowErr := strconv.Atoi(q.Get("row"))
	col, colErr := strconv.Atoi(q.Get("col"))

	r.mu.Lock()
	r.requests++
	r.pages[page]++
	key := fmt.Sprintf("%s/%d/%d", page, row, col)
	attempt := r.hits[key]
	r.hits[key]++
	r.mu.Unlock()

	if rowErr != nil || colErr != nil || q.Get("doc") != r.cfg.DocumentID {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !r.exists(page, row, col) {
		http.NotFound(w, req)
		return
	}
	if r.cfg.Fail != nil {
		if status := r.cfg.Fail(page, row, col, attempt); status != 0 {
			http.Error(w, "scripted failure", status)
			return
		}
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(SolidPNG(r.cfg.TileWidth, r.cfg.TileHeight, TileColor(page, row, col)))
}

// SolidPNG encodes a w×h PNG filled with c.
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
