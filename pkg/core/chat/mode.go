package chat

import (
	"fmt"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ModeKind enumerates request modes.
type ModeKind int

const (
	ModePlain ModeKind = iota
	ModeImageGen
	ModeVideoGen
	ModeDeepResearch
	ModeImageAttached
)

func (k ModeKind) String() string {
	switch k {
	case ModePlain:
		return "plain"
	case ModeImageGen:
		return "image"
	case ModeVideoGen:
		return "video"
	case ModeDeepResearch:
		return "research"
	case ModeImageAttached:
		return "attached"
	default:
		return fmt.Sprintf("mode(%d)", int(k))
	}
}

// Default aspect ratios when none is chosen.
const (
	DefaultImageAspect = "1:1"
	DefaultVideoAspect = "16:9"
)

var (
	imageAspects = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}
	videoAspects = []string{"16:9", "9:16"}
)

// RequestMode is the active request mode. A composer holds exactly one, so
// the special modes and an attached image exclude each other. Video mode may
// carry a source frame.
type RequestMode struct {
	kind   ModeKind
	aspect string
	image  *types.InlineMediaPart
}

// Plain sends through the session's chat handle.
func Plain() RequestMode { return RequestMode{kind: ModePlain} }

// DeepResearch answers with the web-search tool enabled.
func DeepResearch() RequestMode { return RequestMode{kind: ModeDeepResearch} }

// ImageGen generates one image at aspect.
func ImageGen(aspect string) RequestMode {
	if aspect == "" {
		aspect = DefaultImageAspect
	}
	return RequestMode{kind: ModeImageGen, aspect: aspect}
}

// VideoGen generates one video at aspect.
func VideoGen(aspect string) RequestMode {
	if aspect == "" {
		aspect = DefaultVideoAspect
	}
	return RequestMode{kind: ModeVideoGen, aspect: aspect}
}

// VideoFromImage generates one video at aspect that animates img.
func VideoFromImage(aspect string, img types.InlineMediaPart) RequestMode {
	m := VideoGen(aspect)
	m.image = &img
	return m
}

// ImageAttached sends img alongside the prompt through the chat handle.
func ImageAttached(img types.InlineMediaPart) RequestMode {
	return RequestMode{kind: ModeImageAttached, image: &img}
}

// Kind returns the mode discriminator.
func (m RequestMode) Kind() ModeKind { return m.kind }

// AspectRatio is set for image and video generation.
func (m RequestMode) AspectRatio() string { return m.aspect }

// Attachment returns the attached image in ModeImageAttached, or the source
// frame of a video generated from an image.
func (m RequestMode) Attachment() (types.InlineMediaPart, bool) {
	if m.image == nil || (m.kind != ModeImageAttached && m.kind != ModeVideoGen) {
		return types.InlineMediaPart{}, false
	}
	return *m.image, true
}

func (m RequestMode) String() string {
	s := m.kind.String()
	if m.aspect != "" {
		s += " " + m.aspect
	}
	if m.kind == ModeVideoGen && m.image != nil {
		s += " from image"
	}
	return s
}

// ParseMode builds a generation mode from user input such as "image 16:9".
func ParseMode(kind, aspect string) (RequestMode, error) {
	aspect = strings.TrimSpace(aspect)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "plain", "text", "off":
		return Plain(), nil
	case "research", "deep-research":
		return DeepResearch(), nil
	case "image":
		if aspect != "" && !contains(imageAspects, aspect) {
			return RequestMode{}, fmt.Errorf("unsupported image aspect ratio %q (want one of %s)", aspect, strings.Join(imageAspects, ", "))
		}
		return ImageGen(aspect), nil
	case "video":
		if aspect != "" && !contains(videoAspects, aspect) {
			return RequestMode{}, fmt.Errorf("unsupported video aspect ratio %q (want one of %s)", aspect, strings.Join(videoAspects, ", "))
		}
		return VideoGen(aspect), nil
	default:
		return RequestMode{}, fmt.Errorf("unknown mode %q", kind)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Composer is the pending input of the chat view.
type Composer struct {
	Prompt string
	mode   RequestMode
}

// Mode returns the active mode.
func (c *Composer) Mode() RequestMode { return c.mode }

// Toggle activates m, or returns to Plain when a mode of the same kind is
// already active. Any attached image is dropped.
func (c *Composer) Toggle(m RequestMode) {
	if c.mode.kind == m.kind && m.kind != ModePlain {
		c.mode = Plain()
		return
	}
	c.mode = m
}

// SetMode activates m unconditionally.
func (c *Composer) SetMode(m RequestMode) { c.mode = m }

// Attach replaces the active mode with an attached image. In video mode the
// image becomes the source frame and video mode stays active.
func (c *Composer) Attach(img types.InlineMediaPart) error {
	if !types.IsImageMIME(img.MIMEType) {
		return fmt.Errorf("attachment must be an image, got %q", img.MIMEType)
	}
	if img.Data == "" {
		return fmt.Errorf("attachment is empty")
	}
	if c.mode.kind == ModeVideoGen {
		c.mode = VideoFromImage(c.mode.aspect, img)
		return nil
	}
	c.mode = ImageAttached(img)
	return nil
}

// Attachment returns the attached image, if any.
func (c *Composer) Attachment() (types.InlineMediaPart, bool) {
	return c.mode.Attachment()
}

// Clear resets the prompt and drops any attachment. Generation modes stay active.
func (c *Composer) Clear() {
	c.Prompt = ""
	switch c.mode.kind {
	case ModeImageAttached:
		c.mode = Plain()
	case ModeVideoGen:
		c.mode = VideoGen(c.mode.aspect)
	}
}

// Reset returns the composer to an empty Plain state.
func (c *Composer) Reset() {
	c.Prompt = ""
	c.mode = Plain()
}
