package mosaic

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/jackzampolin/tilebook/internal/resolver"
)

// decodeTile decodes tile bytes in any registered format.
// A decode failure means the resolver sent something other than a tile,
// which no retry will fix.
func decodeTile(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &resolver.FatalError{Err: fmt.Errorf("failed to decode tile: %w", err)}
	}
	return img, nil
}

// decodeTileSize reads only the image header.
func decodeTileSize(data []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, &resolver.FatalError{Err: fmt.Errorf("failed to decode tile header: %w", err)}
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}
