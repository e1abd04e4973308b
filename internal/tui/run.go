package tui

import (
	"context"
	"sync"

	"bookshelf/internal/book"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge forwards session changes to the running program. Pass its OnChange
// to library.Options before the session opens.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

func (b *Bridge) OnChange(books []book.Book) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(BooksMsg(books))
	}
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

// Run shows lib until the user quits or ctx is cancelled.
func Run(ctx context.Context, lib Library, bridge *Bridge, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, lib), opts...)
	if bridge != nil {
		bridge.attach(p)
		defer bridge.attach(nil)
	}
	_, err := p.Run()
	return err
}
