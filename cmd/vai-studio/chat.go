package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/markup"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	modelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

const chatHelp = `Type a message to send it to the active chat.

  /new [flash|pro]        start a chat
  /tool book-writer       start a tool chat
  /list                   list chats
  /search <text>          find chats by title or message text
  /switch <n|id>          activate a chat
  /rename <title>         rename the active chat
  /delete [n|id]          delete a chat (default: active)
  /model [flash|pro]      show or switch the model
  /mode [plain|research|image|video] [aspect]
                          toggle a generation mode
  /attach <path>          attach an image to the next message, or the
                          frame to animate in video mode
  /detach                 drop the attachment
  /edit <index> <text>    rewrite a user message and replay from it
  /explore <prompt>       ask in a fresh chat
  /show                   print the active chat
  /read                   read the last reply aloud
  /key                    re-enable features after fixing the API key
  /exit                   quit`

func newChatCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive multi-session chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, state)
			if err != nil {
				return err
			}
			defer func() {
				if err := ws.Close(); err != nil {
					state.logger.Warn("close workspace", "error", err)
				}
			}()

			r := &chatREPL{
				store:  ws.store,
				turns:  ws.turns,
				media:  mediaSaver(state.cfg.MediaDir),
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
				speak: func(ctx context.Context, texts ...string) error {
					return speakTexts(ctx, state, ws.provider, texts...)
				},
			}
			return r.run(ctx, cmd.InOrStdin(), isTerminal(os.Stdin))
		},
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// chatREPL drives the chat store and turn controller from line input.
type chatREPL struct {
	store *chat.Store
	turns *chat.TurnController
	media chat.MediaSaver
	comp  chat.Composer

	// speak is optional; /read is unavailable without it.
	speak func(ctx context.Context, texts ...string) error

	out    io.Writer
	errOut io.Writer

	// saved caches the files written for inline media so /show does not save
	// the same image again.
	saved map[mediaKey]savedMedia
}

type mediaKey struct {
	chatID        string
	message, part int
}

type savedMedia struct {
	digest [sha256.Size]byte
	uri    string
}

func (r *chatREPL) run(ctx context.Context, in io.Reader, interactive bool) error {
	fmt.Fprintln(r.out, metaStyle.Render("vai-studio chat. /help lists commands."))
	r.printActive()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for {
		if interactive {
			fmt.Fprint(r.out, r.promptLabel())
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := r.handleLine(ctx, line)
		if err != nil {
			fmt.Fprintln(r.errOut, errorStyle.Render(err.Error()))
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *chatREPL) promptLabel() string {
	label := "> "
	if kind := r.comp.Mode().Kind(); kind != chat.ModePlain {
		label = "[" + r.comp.Mode().String() + "] > "
	}
	return label
}

// handleLine runs one command or sends one message.
func (r *chatREPL) handleLine(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/exit", "/quit":
		fmt.Fprintln(r.out, "bye")
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/new":
		var model types.Model
		if arg != "" {
			if model, err = types.ParseModel(arg); err != nil {
				return false, err
			}
		}
		if _, err := r.store.Create(ctx, model); err != nil {
			return false, err
		}
		r.comp.Reset()
		r.printActive()
	case "/tool":
		if _, err := r.store.CreateToolChat(ctx, arg); err != nil {
			return false, err
		}
		r.comp.Reset()
		r.printActive()
		r.show()
	case "/list":
		r.list()
	case "/search":
		return false, r.search(arg)
	case "/switch":
		id, err := r.resolveChat(arg)
		if err != nil {
			return false, err
		}
		if err := r.store.SetActive(id); err != nil {
			return false, err
		}
		r.comp.Reset()
		r.printActive()
	case "/rename":
		if err := r.store.Rename(ctx, r.store.Active(), arg); err != nil {
			return false, err
		}
		r.printActive()
	case "/delete":
		id := r.store.Active()
		if arg != "" {
			if id, err = r.resolveChat(arg); err != nil {
				return false, err
			}
		}
		if err := r.store.Delete(ctx, id); err != nil {
			return false, err
		}
		r.printActive()
	case "/model":
		return false, r.model(ctx, arg)
	case "/mode":
		return false, r.mode(arg)
	case "/research":
		r.comp.Toggle(chat.DeepResearch())
		fmt.Fprintln(r.out, metaStyle.Render("mode: "+r.comp.Mode().String()))
	case "/attach":
		return false, r.attach(arg)
	case "/detach":
		if m := r.comp.Mode(); m.Kind() == chat.ModeVideoGen {
			r.comp.SetMode(chat.VideoGen(m.AspectRatio()))
		} else {
			r.comp.SetMode(chat.Plain())
		}
		fmt.Fprintln(r.out, metaStyle.Render("attachment dropped"))
	case "/edit":
		return false, r.edit(ctx, arg)
	case "/explore":
		res, err := r.turns.Explore(ctx, arg)
		if err != nil {
			return false, err
		}
		r.printActive()
		r.printTurn(ctx, res)
	case "/show":
		r.show()
	case "/read":
		return false, r.read(ctx)
	case "/key":
		r.turns.SelectCredential()
		fmt.Fprintln(r.out, metaStyle.Render("API key selected; credential-gated features are enabled again"))
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (r *chatREPL) send(ctx context.Context, line string) error {
	if r.comp.Mode().Kind() == chat.ModeVideoGen && !r.turns.CredentialSelected() {
		return errors.New("the API key was rejected; fix GEMINI_API_KEY and run /key before generating videos")
	}
	if r.comp.Mode().Kind() == chat.ModeVideoGen {
		fmt.Fprintln(r.out, metaStyle.Render(chat.LoadingVideo))
	}
	r.comp.Prompt = line
	res, err := r.turns.Submit(ctx, r.store.Active(), &r.comp)
	if err != nil {
		return err
	}
	r.printTurn(ctx, res)
	return nil
}

func (r *chatREPL) model(ctx context.Context, arg string) error {
	id := r.store.Active()
	if arg == "" {
		snap, _ := r.store.Get(id)
		fmt.Fprintf(r.out, "model: %s\n", snap.Model.DisplayName())
		return nil
	}
	model, err := types.ParseModel(arg)
	if err != nil {
		return err
	}
	if err := r.store.SwitchModel(ctx, id, model); err != nil {
		return err
	}
	fmt.Fprintln(r.out, metaStyle.Render("model: "+model.DisplayName()))
	return nil
}

func (r *chatREPL) mode(arg string) error {
	if arg == "" {
		fmt.Fprintln(r.out, "mode: "+r.comp.Mode().String())
		return nil
	}
	kind, aspect, _ := strings.Cut(arg, " ")
	m, err := chat.ParseMode(kind, aspect)
	if err != nil {
		return err
	}
	if m.Kind() == chat.ModeVideoGen && !r.turns.CredentialSelected() {
		return errors.New("the API key was rejected; fix GEMINI_API_KEY and run /key before generating videos")
	}
	if m.Kind() == chat.ModePlain {
		r.comp.SetMode(m)
	} else {
		r.comp.Toggle(m)
	}
	fmt.Fprintln(r.out, metaStyle.Render("mode: "+r.comp.Mode().String()))
	return nil
}

func (r *chatREPL) attach(path string) error {
	img, err := readImage(path)
	if err != nil {
		return err
	}
	if err := r.comp.Attach(img); err != nil {
		return err
	}
	if r.comp.Mode().Kind() == chat.ModeVideoGen {
		fmt.Fprintln(r.out, metaStyle.Render("video will animate "+filepath.Base(path)))
		return nil
	}
	fmt.Fprintln(r.out, metaStyle.Render("attached "+filepath.Base(path)))
	return nil
}

func (r *chatREPL) edit(ctx context.Context, arg string) error {
	idx, text, _ := strings.Cut(arg, " ")
	index, err := strconv.Atoi(idx)
	if err != nil {
		return errors.New("usage: /edit <index> <text>")
	}
	res, err := r.turns.EditAndResubmit(ctx, r.store.Active(), index, strings.TrimSpace(text))
	if err != nil {
		return err
	}
	r.printTurn(ctx, res)
	return nil
}

func (r *chatREPL) read(ctx context.Context) error {
	if r.speak == nil {
		return errors.New("read aloud is not available")
	}
	texts, err := lastReplyTexts(r.store, "")
	if err != nil {
		return err
	}
	return r.speak(ctx, texts...)
}

// resolveChat accepts a 1-based list position or a chat id.
func (r *chatREPL) resolveChat(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("which chat? give a list number or an id")
	}
	list := r.store.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("no chat number %d", n)
		}
		return list[n-1].ID, nil
	}
	if _, ok := r.store.Get(arg); !ok {
		return "", fmt.Errorf("chat %q not found", arg)
	}
	return arg, nil
}

func (r *chatREPL) list() {
	active := r.store.Active()
	for i, s := range r.store.List() {
		line := fmt.Sprintf("%2d. %s", i+1, s.Title)
		meta := metaStyle.Render(fmt.Sprintf("(%s, %d messages, %s)", s.Model.DisplayName(), s.Messages, s.ID))
		if s.ID == active {
			line = activeStyle.Render(line)
		}
		fmt.Fprintln(r.out, line+" "+meta)
	}
}

func (r *chatREPL) search(query string) error {
	if query == "" {
		return errors.New("usage: /search <text>")
	}
	results := r.store.Search(query)
	if len(results) == 0 {
		fmt.Fprintln(r.out, metaStyle.Render("no chats match "+strconv.Quote(query)))
		return nil
	}
	position := make(map[string]int)
	for i, s := range r.store.List() {
		position[s.ID] = i + 1
	}
	for _, res := range results {
		fmt.Fprintf(r.out, "%2d. %s %s\n", position[res.ID], res.Title, metaStyle.Render("("+res.ID+")"))
		if res.Snippet != "" {
			fmt.Fprintln(r.out, metaStyle.Render(fmt.Sprintf("    [%d] %s", res.Message, res.Snippet)))
		}
	}
	return nil
}

func (r *chatREPL) printActive() {
	snap, ok := r.store.Get(r.store.Active())
	if !ok {
		return
	}
	fmt.Fprintln(r.out, activeStyle.Render(snap.Title)+" "+metaStyle.Render(snap.Model.DisplayName()))
}

func (r *chatREPL) show() {
	snap, ok := r.store.Get(r.store.Active())
	if !ok {
		return
	}
	for i, msg := range snap.Messages {
		r.printMessage(context.Background(), snap.ID, i, msg)
	}
}

func (r *chatREPL) printTurn(ctx context.Context, res *chat.TurnResult) {
	snap, _ := r.store.Get(res.SessionID)
	r.printMessage(ctx, res.SessionID, len(snap.Messages)-1, res.Reply)
	if res.Err != nil && res.Err.ResetCredential {
		fmt.Fprintln(r.errOut, errorStyle.Render("Fix GEMINI_API_KEY, then run /key."))
	}
}

func (r *chatREPL) printMessage(ctx context.Context, chatID string, index int, msg types.Message) {
	label := userStyle.Render(fmt.Sprintf("[%d] you", index))
	if msg.Role == types.RoleModel {
		label = modelStyle.Render(fmt.Sprintf("[%d] gemini", index))
	}
	fmt.Fprintln(r.out, label)
	for i, part := range msg.Parts {
		switch p := part.(type) {
		case types.TextPart:
			text := p.Text
			if msg.Role == types.RoleModel {
				text = markup.PlainText(text)
			}
			fmt.Fprintln(r.out, text)
		case types.InlineMediaPart:
			fmt.Fprintln(r.out, metaStyle.Render(r.describeMedia(ctx, mediaKey{chatID, index, i}, p)))
		case types.VideoRefPart:
			fmt.Fprintln(r.out, metaStyle.Render("video: "+p.URI))
		}
	}
	for _, src := range types.CitedSources(msg.Sources) {
		title := src.Title
		if title == "" {
			title = src.URI
		}
		fmt.Fprintln(r.out, metaStyle.Render("source: "+title+" <"+src.URI+">"))
	}
}

// describeMedia saves inline media so the terminal can point at a file. A
// part is saved once unless its content at key changes.
func (r *chatREPL) describeMedia(ctx context.Context, key mediaKey, p types.InlineMediaPart) string {
	if r.media == nil {
		return p.MIMEType
	}
	data, err := p.Bytes()
	if err != nil {
		return p.MIMEType + " (undecodable)"
	}
	digest := sha256.Sum256(data)
	if cached, ok := r.saved[key]; ok && cached.digest == digest {
		return p.MIMEType + ": " + cached.uri
	}
	uri, err := r.media.Save(ctx, p.MIMEType, data)
	if err != nil {
		return p.MIMEType + " (" + err.Error() + ")"
	}
	if r.saved == nil {
		r.saved = make(map[mediaKey]savedMedia)
	}
	r.saved[key] = savedMedia{digest: digest, uri: uri}
	return p.MIMEType + ": " + uri
}

// readImage loads an image file as inline media.
func readImage(path string) (types.InlineMediaPart, error) {
	if path == "" {
		return types.InlineMediaPart{}, errors.New("give an image path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.InlineMediaPart{}, err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !types.IsImageMIME(mimeType) {
		return types.InlineMediaPart{}, fmt.Errorf("%s is not an image (%s)", filepath.Base(path), mimeType)
	}
	return types.NewInlineMedia(mimeType, data), nil
}
