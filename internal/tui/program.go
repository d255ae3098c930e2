package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/zoosearch/internal/search"
)

// ErrAborted is returned by Run when the user quits the dashboard.
var ErrAborted = errors.New("search aborted from the dashboard")

// SearchFunc runs a search reporting to obs.
type SearchFunc func(ctx context.Context, obs search.Observer) (*search.Summary, error)

// Observer forwards search progress into a running program.
func Observer(p *tea.Program) search.Observer {
	return search.ObserverFunc(func(pr search.Progress) {
		p.Send(ProgressMsg(pr))
	})
}

// Run shows the dashboard while fn runs. Quitting cancels fn's context.
func Run(ctx context.Context, title string, total int, fn SearchFunc, opts ...tea.ProgramOption) (*search.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, total), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	type result struct {
		sum *search.Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := fn(ctx, Observer(p))
		done <- result{sum, err}
		p.Send(DoneMsg{Summary: sum, Err: err})
	}()

	final, err := p.Run()
	cancel()
	res := <-done

	if m, ok := final.(Model); ok && m.Aborted() {
		return res.sum, ErrAborted
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return res.sum, fmt.Errorf("dashboard: %w", err)
	}
	return res.sum, res.err
}
