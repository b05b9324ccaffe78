package imageedit

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// FlipDirection is the axis of a mirror flip.
type FlipDirection string

const (
	FlipHorizontal FlipDirection = "horizontal"
	FlipVertical   FlipDirection = "vertical"
)

// encodeFormats lists the MIME types written back in their own format.
// Anything else is re-encoded as PNG.
var encodeFormats = map[string]imaging.Format{
	"image/png":  imaging.PNG,
	"image/jpeg": imaging.JPEG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
	"image/tiff": imaging.TIFF,
}

// Rotate turns the current image clockwise by degrees, one of 90, 180, 270
// or -90, and pushes the result.
func (e *Editor) Rotate(degrees int) (Entry, error) {
	var fn func(image.Image) *image.NRGBA
	switch degrees {
	case 90:
		fn = imaging.Rotate270
	case 180:
		fn = imaging.Rotate180
	case 270, -90:
		degrees = 270
		fn = imaging.Rotate90
	default:
		return Entry{}, core.NewInvalidRequestError(fmt.Sprintf("rotation must be 90, 180 or 270 degrees, got %d", degrees))
	}
	return e.transform(fmt.Sprintf("Rotate %d°", degrees), fn)
}

// Flip mirrors the current image along dir and pushes the result.
func (e *Editor) Flip(dir FlipDirection) (Entry, error) {
	switch dir {
	case FlipHorizontal:
		return e.transform("Flip horizontal", imaging.FlipH)
	case FlipVertical:
		return e.transform("Flip vertical", imaging.FlipV)
	default:
		return Entry{}, core.NewInvalidRequestError(fmt.Sprintf("flip direction must be horizontal or vertical, got %q", dir))
	}
}

func (e *Editor) transform(label string, fn func(image.Image) *image.NRGBA) (Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.hist.Current()
	if !ok {
		return Entry{}, core.NewInvalidRequestError("open an image first")
	}
	out, err := applyTransform(cur.Image, fn)
	if err != nil {
		return Entry{}, err
	}
	e.hist.Push(out, label)
	entry, _ := e.hist.Current()
	return entry, nil
}

func applyTransform(img types.InlineMediaPart, fn func(image.Image) *image.NRGBA) (types.InlineMediaPart, error) {
	data, err := img.Bytes()
	if err != nil {
		return types.InlineMediaPart{}, fmt.Errorf("decode %s data: %w", img.MIMEType, err)
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return types.InlineMediaPart{}, core.NewInvalidRequestError(fmt.Sprintf("cannot read %s image: %v", img.MIMEType, err))
	}

	mimeType := img.MIMEType
	format, ok := encodeFormats[mimeType]
	if !ok {
		mimeType, format = "image/png", imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fn(src), format); err != nil {
		return types.InlineMediaPart{}, fmt.Errorf("encode %s: %w", mimeType, err)
	}
	return types.NewInlineMedia(mimeType, buf.Bytes()), nil
}
