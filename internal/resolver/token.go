package resolver

import (
	"fmt"
	"strconv"
)

// Default cover markers used by the National Library resolver.
const (
	FrontCover = "C1"
	BackCover  = "C3"
)

// PageToken identifies one page of a document: either a 1-indexed page
// number or a literal cover marker.
type PageToken struct {
	number int
	marker string
}

// Page returns the token for numbered page n.
func Page(n int) PageToken {
	return PageToken{number: n}
}

// Cover returns the token for a cover marker such as "C1".
func Cover(marker string) PageToken {
	return PageToken{marker: marker}
}

// ParsePageToken parses "12" as page 12 and anything else as a cover marker.
func ParsePageToken(s string) (PageToken, error) {
	if s == "" {
		return PageToken{}, fmt.Errorf("empty page token")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return PageToken{}, fmt.Errorf("page number must be positive, got %d", n)
		}
		return Page(n), nil
	}
	return Cover(s), nil
}

// IsCover reports whether the token is a cover marker.
func (t PageToken) IsCover() bool {
	return t.marker != ""
}

// Number returns the page number, or 0 for covers.
func (t PageToken) Number() int {
	return t.number
}

// String returns the short form: "7" or "C1".
func (t PageToken) String() string {
	if t.IsCover() {
		return t.marker
	}
	return strconv.Itoa(t.number)
}

// Padded returns the form embedded in resolver URNs.
// Page numbers are zero-padded to four digits; covers are returned as-is.
func (t PageToken) Padded() string {
	if t.IsCover() {
		return t.marker
	}
	return fmt.Sprintf("%04d", t.number)
}
