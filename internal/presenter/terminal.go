package presenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

// Terminal presents options as an interactive multi-select. It is unavailable
// when its input is not a terminal.
type Terminal struct {
	in  *os.File
	out io.Writer

	isTerminal func(fd uintptr) bool
	run        func(ctx context.Context, form *huh.Form) error

	// one form on screen at a time
	mu sync.Mutex
}

func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{
		in:  in,
		out: out,
		isTerminal: func(fd uintptr) bool {
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		run: func(ctx context.Context, form *huh.Form) error {
			return form.RunWithContext(ctx)
		},
	}
}

func (t *Terminal) Available() bool {
	return t.in != nil && t.isTerminal(t.in.Fd())
}

func (t *Terminal) Present(ctx context.Context, session *domain.MediationSession) ([]int, error) {
	if !t.Available() {
		return nil, domain.ErrPresenterUnavailable
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	WriteReport(t.out, session.Records)
	fmt.Fprintln(t.out)

	if len(session.Options) == 0 {
		form := huh.NewForm(huh.NewGroup(
			huh.NewNote().
				Title("No automatic resolution available").
				Description("The conflicts above were logged. Press enter to continue."),
		)).WithInput(t.in).WithOutput(t.out)
		if err := t.run(ctx, form); err != nil {
			return nil, translateFormError(err)
		}
		return nil, nil
	}

	var selected []int
	opts := make([]huh.Option[int], len(session.Options))
	for i, o := range session.Options {
		opts[i] = huh.NewOption(o.Label, i)
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[int]().
			Title("Select artifacts to disable on next start").
			Description(selectionHint()).
			Options(opts...).
			Value(&selected),
	)).WithInput(t.in).WithOutput(t.out)

	if err := t.run(ctx, form); err != nil {
		return nil, translateFormError(err)
	}
	return selected, nil
}

// selectionHint names the form's quit key, which ends the session as skipped.
func selectionHint() string {
	skip := "ctrl+c"
	if keys := huh.NewDefaultKeyMap().Quit.Keys(); len(keys) > 0 {
		skip = keys[0]
	}
	return "Space toggles, enter confirms, " + skip + " skips without changes."
}

func translateFormError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return domain.ErrDecisionSkipped
	}
	return err
}
