package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/agita-app/agita/internal/filex"
	"golang.org/x/term"
)

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// readImage loads an image argument; an empty path means no image. Files
// over the upload limit are refused before they are read.
func (a *App) readImage(ctx context.Context, path string) (*hooks.File, error) {
	if path == "" {
		return nil, nil
	}
	name, data, err := filex.ReadLimited(path, a.config.MaxUploadBytes())
	if err != nil {
		printNotifier{w: a.errOut}.Notify(ctx, hooks.Notification{
			Level: hooks.LevelError, Title: "Invalid file", Message: err.Error(), Err: err,
		})
		return nil, err
	}
	return &hooks.File{Name: name, Data: data}, nil
}

func readPassword() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Access token: ")
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(int(os.Stdin.Fd()))
}
