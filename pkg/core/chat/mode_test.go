package chat

import (
	"strings"
	"testing"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

func TestComposer_Toggle(t *testing.T) {
	img := types.NewInlineMedia("image/png", []byte{1})
	tests := []struct {
		name       string
		start      RequestMode
		toggle     RequestMode
		want       ModeKind
		wantAspect string
	}{
		{name: "plain to research", start: Plain(), toggle: DeepResearch(), want: ModeDeepResearch},
		{name: "research off", start: DeepResearch(), toggle: DeepResearch(), want: ModePlain},
		{name: "research to image", start: DeepResearch(), toggle: ImageGen("4:3"), want: ModeImageGen, wantAspect: "4:3"},
		{name: "image to research", start: ImageGen(""), toggle: DeepResearch(), want: ModeDeepResearch},
		{name: "image off", start: ImageGen("16:9"), toggle: ImageGen("1:1"), want: ModePlain},
		{name: "image to video", start: ImageGen(""), toggle: VideoGen(""), want: ModeVideoGen, wantAspect: DefaultVideoAspect},
		{name: "attachment to image gen", start: ImageAttached(img), toggle: ImageGen(""), want: ModeImageGen, wantAspect: DefaultImageAspect},
		{name: "attachment to research", start: ImageAttached(img), toggle: DeepResearch(), want: ModeDeepResearch},
		{name: "video source to research", start: VideoFromImage("", img), toggle: DeepResearch(), want: ModeDeepResearch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &Composer{Prompt: "keep"}
			comp.SetMode(tt.start)
			comp.Toggle(tt.toggle)
			got := comp.Mode()
			if got.Kind() != tt.want || got.AspectRatio() != tt.wantAspect {
				t.Fatalf("mode = %v, want %s %s", got, tt.want, tt.wantAspect)
			}
			if _, ok := comp.Attachment(); ok {
				t.Fatal("attachment survived a mode toggle")
			}
			if comp.Prompt != "keep" {
				t.Fatalf("toggle changed the prompt to %q", comp.Prompt)
			}
		})
	}
}

func TestComposer_Attach(t *testing.T) {
	img := types.NewInlineMedia("image/jpeg", []byte{2})

	comp := &Composer{}
	comp.SetMode(ImageGen(""))
	if err := comp.Attach(img); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if got, ok := comp.Attachment(); comp.Mode().Kind() != ModeImageAttached || !ok || got != img {
		t.Fatalf("attach over image gen: mode=%v", comp.Mode())
	}

	comp.SetMode(VideoGen("9:16"))
	if err := comp.Attach(img); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if got, ok := comp.Attachment(); comp.Mode().Kind() != ModeVideoGen || comp.Mode().AspectRatio() != "9:16" || !ok || got != img {
		t.Fatalf("attach in video mode: mode=%v", comp.Mode())
	}

	for _, bad := range []types.InlineMediaPart{
		types.NewInlineMedia("application/pdf", []byte{1}),
		{MIMEType: "image/png"},
	} {
		if err := comp.Attach(bad); err == nil {
			t.Fatalf("Attach(%q) accepted", bad.MIMEType)
		}
	}
}

func TestComposer_Clear(t *testing.T) {
	img := types.NewInlineMedia("image/png", []byte{3})
	tests := []struct {
		name       string
		mode       RequestMode
		want       ModeKind
		wantAspect string
	}{
		{name: "plain", mode: Plain(), want: ModePlain},
		{name: "attachment dropped", mode: ImageAttached(img), want: ModePlain},
		{name: "image gen kept", mode: ImageGen("3:4"), want: ModeImageGen, wantAspect: "3:4"},
		{name: "video gen kept", mode: VideoGen("9:16"), want: ModeVideoGen, wantAspect: "9:16"},
		{name: "video source dropped", mode: VideoFromImage("16:9", img), want: ModeVideoGen, wantAspect: "16:9"},
		{name: "research kept", mode: DeepResearch(), want: ModeDeepResearch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &Composer{Prompt: "sent"}
			comp.SetMode(tt.mode)
			comp.Clear()
			if comp.Prompt != "" {
				t.Fatalf("prompt = %q after Clear", comp.Prompt)
			}
			if got := comp.Mode(); got.Kind() != tt.want || got.AspectRatio() != tt.wantAspect {
				t.Fatalf("mode = %v, want %s %s", got, tt.want, tt.wantAspect)
			}
			if _, ok := comp.Attachment(); ok {
				t.Fatal("attachment survived Clear")
			}
		})
	}

	comp := &Composer{Prompt: "x"}
	comp.SetMode(VideoGen(""))
	comp.Reset()
	if comp.Prompt != "" || comp.Mode().Kind() != ModePlain {
		t.Fatalf("Reset left %+v", comp)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		kind, aspect string
		want         string
		wantErr      string
	}{
		{kind: "", want: "plain"},
		{kind: "off", want: "plain"},
		{kind: "Research", want: "research"},
		{kind: "deep-research", want: "research"},
		{kind: "image", want: "image 1:1"},
		{kind: "image", aspect: " 9:16 ", want: "image 9:16"},
		{kind: "video", want: "video 16:9"},
		{kind: "video", aspect: "9:16", want: "video 9:16"},
		{kind: "image", aspect: "2:1", wantErr: "unsupported image aspect ratio"},
		{kind: "video", aspect: "1:1", wantErr: "unsupported video aspect ratio"},
		{kind: "song", wantErr: "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.kind+" "+tt.aspect, func(t *testing.T) {
			got, err := ParseMode(tt.kind, tt.aspect)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseMode() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode() error = %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseMode() = %q, want %q", got, tt.want)
			}

			// String output parses back to the same mode.
			kind, aspect, _ := strings.Cut(got.String(), " ")
			again, err := ParseMode(kind, aspect)
			if err != nil || again != got {
				t.Fatalf("round trip of %q = %v, %v", got, again, err)
			}
		})
	}
}
