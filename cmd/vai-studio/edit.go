package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/imageedit"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
)

const editHelp = `Describe an edit to apply it to the current image.

  /undo        step back
  /redo        step forward
  /reset       return to the original image
  /rotate [90|180|270]
               turn the image clockwise (default 90)
  /flip [horizontal|vertical]
               mirror the image (default horizontal)
  /history     list the edit history
  /save [path] write the current image (default: the media directory)
  /exit        quit`

func newEditCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <image>",
		Short: "Edit an image with prompts, with undo and redo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			provider, err := gemini.New(ctx, state.cfg.APIKey, gemini.WithLogger(state.logger))
			if err != nil {
				return err
			}

			editor := imageedit.NewEditor(provider, state.logger)
			if err := editor.Open(img); err != nil {
				return err
			}
			r := &editREPL{
				editor: editor,
				media:  mediaSaver(state.cfg.MediaDir),
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
			}
			return r.run(ctx, cmd.InOrStdin(), isTerminal(os.Stdin))
		},
	}
}

type editREPL struct {
	editor *imageedit.Editor
	media  chat.MediaSaver
	out    io.Writer
	errOut io.Writer
}

func (r *editREPL) run(ctx context.Context, in io.Reader, interactive bool) error {
	fmt.Fprintln(r.out, metaStyle.Render("vai-studio image editor. /help lists commands."))
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(r.out, "edit> ")
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

func (r *editREPL) handleLine(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		fmt.Fprintln(r.out, metaStyle.Render("editing..."))
		entry, err := r.editor.Edit(ctx, line)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, activeStyle.Render("applied: "+entry.Label))
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, editHelp)
	case "/undo":
		if !r.editor.Undo() {
			return false, errors.New("nothing to undo")
		}
		r.printCurrent()
	case "/redo":
		if !r.editor.Redo() {
			return false, errors.New("nothing to redo")
		}
		r.printCurrent()
	case "/reset":
		if !r.editor.ResetToOriginal() {
			return false, errors.New("already at the original image")
		}
		r.printCurrent()
	case "/rotate":
		degrees := 90
		if arg != "" {
			if degrees, err = strconv.Atoi(strings.TrimSuffix(arg, "°")); err != nil {
				return false, errors.New("usage: /rotate [90|180|270]")
			}
		}
		entry, err := r.editor.Rotate(degrees)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, activeStyle.Render("applied: "+entry.Label))
	case "/flip":
		dir := imageedit.FlipHorizontal
		if arg != "" {
			dir = imageedit.FlipDirection(strings.ToLower(arg))
		}
		entry, err := r.editor.Flip(dir)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, activeStyle.Render("applied: "+entry.Label))
	case "/history":
		entries, index := r.editor.Entries()
		for i, e := range entries {
			line := fmt.Sprintf("%2d. %s", i+1, e.Label)
			if i == index {
				line = activeStyle.Render(line + " *")
			}
			fmt.Fprintln(r.out, line)
		}
	case "/save":
		return false, r.save(ctx, arg)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (r *editREPL) printCurrent() {
	if cur, ok := r.editor.Current(); ok {
		fmt.Fprintln(r.out, metaStyle.Render("current: "+cur.Label))
	}
}

func (r *editREPL) save(ctx context.Context, path string) error {
	cur, ok := r.editor.Current()
	if !ok {
		return errors.New("no image open")
	}
	data, err := cur.Image.Bytes()
	if err != nil {
		return err
	}
	if path == "" {
		if r.media == nil {
			return errors.New("give a path: no media directory is configured")
		}
		uri, err := r.media.Save(ctx, cur.Image.MIMEType, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, "saved "+uri)
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "saved "+path)
	return nil
}
