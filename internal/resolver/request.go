package resolver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultURLTemplate addresses the National Library of Norway image resolver
// at full resolution with 1024px tiles.
const DefaultURLTemplate = "https://www.nb.no/services/image/resolver?url_ver=geneza" +
	"&urn=URN:NBN:no-nb_digibok_{book_id}_{long_page_nr}" +
	"&maxLevel=5&level=5&col={col}&row={row}" +
	"&resX=9999&resY=9999&tileWidth=1024&tileHeight=1024&pg_id={page_nr}"

// Coordinate addresses one tile within a page grid. Both fields are zero-based.
type Coordinate struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Request describes a single tile fetch. It is a value: build a new one per
// fetch rather than mutating a shared instance.
type Request struct {
	DocumentID string
	Page       PageToken
	Tile       Coordinate
}

// NewRequest builds a tile request.
func NewRequest(documentID string, page PageToken, tile Coordinate) Request {
	return Request{DocumentID: documentID, Page: page, Tile: tile}
}

// URL renders the request through a template containing the placeholders
// {book_id}, {page_nr}, {long_page_nr}, {row} and {col}.
func (r Request) URL(template string) string {
	return strings.NewReplacer(
		"{book_id}", url.QueryEscape(r.DocumentID),
		"{page_nr}", url.QueryEscape(r.Page.String()),
		"{long_page_nr}", url.QueryEscape(r.Page.Padded()),
		"{row}", strconv.Itoa(r.Tile.Row),
		"{col}", strconv.Itoa(r.Tile.Col),
	).Replace(template)
}

func (r Request) String() string {
	return fmt.Sprintf("document %s page %s tile %s", r.DocumentID, r.Page, r.Tile)
}
