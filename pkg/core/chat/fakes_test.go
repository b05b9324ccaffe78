package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/vango-go/vai-studio/pkg/blobstore"
	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

type fakeHandle struct {
	model   types.Model
	history []types.Message

	mu   sync.Mutex
	sent [][]types.Part
}

// fakeBackend implements core.Backend. Chat replies come from reply/replyErr.
type fakeBackend struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	newErr   error
	reply    string
	replyErr error
	block    chan struct{}
	started  chan struct{}

	image    *types.ImageResult
	imageErr error

	content    *types.ContentResponse
	contentReq *types.ContentRequest

	videoOps    []*types.VideoOperation
	videoPrompt string
	videoImage  *types.InlineMediaPart
	polls       int
	videoData   []byte
	downloadURI string
}

type replyHandle struct {
	*fakeHandle
	b *fakeBackend
}

func (h replyHandle) SendMessage(ctx context.Context, parts []types.Part) (*types.ChatReply, error) {
	h.fakeHandle.mu.Lock()
	h.fakeHandle.sent = append(h.fakeHandle.sent, parts)
	h.fakeHandle.mu.Unlock()

	h.b.mu.Lock()
	block, started := h.b.block, h.b.started
	reply, err := h.b.reply, h.b.replyErr
	h.b.started = nil
	h.b.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &types.ChatReply{Text: reply}, nil
}

func (b *fakeBackend) NewChat(ctx context.Context, model types.Model, history []types.Message) (core.ChatHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newErr != nil {
		return nil, b.newErr
	}
	h := &fakeHandle{model: model, history: types.CloneMessages(history)}
	b.handles = append(b.handles, h)
	return replyHandle{fakeHandle: h, b: b}, nil
}

func (b *fakeBackend) lastHandle() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

func (b *fakeBackend) GenerateContent(ctx context.Context, req *types.ContentRequest) (*types.ContentResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contentReq = req
	if b.content == nil {
		return &types.ContentResponse{}, nil
	}
	return b.content, nil
}

func (b *fakeBackend) GenerateImage(ctx context.Context, prompt, aspect string) (*types.ImageResult, error) {
	if b.imageErr != nil {
		return nil, b.imageErr
	}
	return b.image, nil
}

func (b *fakeBackend) StartVideo(ctx context.Context, prompt, aspect string, image *types.InlineMediaPart) (*types.VideoOperation, error) {
	b.videoPrompt, b.videoImage = prompt, image
	if len(b.videoOps) == 0 {
		return nil, errors.New("no video ops")
	}
	return b.videoOps[0], nil
}

func (b *fakeBackend) PollVideo(ctx context.Context, op *types.VideoOperation) (*types.VideoOperation, error) {
	b.polls++
	i := b.polls
	if i >= len(b.videoOps) {
		i = len(b.videoOps) - 1
	}
	return b.videoOps[i], nil
}

func (b *fakeBackend) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	b.downloadURI = uri
	return b.videoData, "", nil
}

type fakeMedia struct {
	saved    []byte
	mimeType string
}

func (m *fakeMedia) Save(ctx context.Context, mimeType string, data []byte) (string, error) {
	m.saved = data
	m.mimeType = mimeType
	return "file:///media/v.mp4", nil
}

func newTestStore(b *fakeBackend, blobs blobstore.Store) *Store {
	n := 0
	return NewStore(b, blobs, WithIDGenerator(func() string {
		n++
		return string(rune('a'+n-1)) + "-chat"
	}))
}

// restoredStore returns a store with one fresh session after Restore.
func restoredStore(b *fakeBackend) (*Store, *blobstore.Memory) {
	blobs := blobstore.NewMemory()
	s := newTestStore(b, blobs)
	if err := s.Restore(context.Background()); err != nil {
		panic(err)
	}
	return s, blobs
}
