// Package tui renders a library session as an interactive card grid.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshelf/internal/book"
	"bookshelf/internal/library"
	"bookshelf/internal/platform/validate"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Library is the part of library.Session the UI drives.
type Library interface {
	Books() []book.Book
	Mode() library.Mode
	OwnerID() string
	AddBook(ctx context.Context, b book.Book) error
	RemoveBook(ctx context.Context, title string) error
	ToggleRead(ctx context.Context, title string) error
	SignOut(ctx context.Context) error
}

// BooksMsg carries a full library snapshot to the model.
type BooksMsg []book.Book

type addedMsg struct{ err error }

type opErrMsg struct{ err error }

const (
	fieldTitle = iota
	fieldAuthor
	fieldPages
	fieldRead
	fieldCount
)

type addForm struct {
	Title  string `validate:"notblank"`
	Author string
	Pages  string
}

// Model is the Bubble Tea model of the library screen. Every mutation runs as
// a tea.Cmd; the resulting snapshot arrives later as a BooksMsg.
type Model struct {
	ctx   context.Context
	lib   Library
	books []book.Book

	cursor int
	width  int

	adding  bool
	inputs  []textinput.Model
	focus   int
	isRead  bool
	formErr string

	err error
}

// NewModel returns a model showing lib's current books.
func NewModel(ctx context.Context, lib Library) Model {
	inputs := make([]textinput.Model, fieldRead)
	for i, placeholder := range []string{"Title", "Author", "Pages"} {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("%-7s ", placeholder+":")
		ti.Placeholder = placeholder
		ti.CharLimit = 200
		inputs[i] = ti
	}
	inputs[fieldPages].CharLimit = 6

	return Model{
		ctx:    ctx,
		lib:    lib,
		books:  lib.Books(),
		width:  80,
		inputs: inputs,
	}
}

// Init reloads the library once the program runs, catching changes made
// before the Bridge was attached.
func (m Model) Init() tea.Cmd {
	lib := m.lib
	return func() tea.Msg { return BooksMsg(lib.Books()) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case BooksMsg:
		m.books = []book.Book(msg)
		m.clampCursor()
		return m, nil
	case addedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, library.ErrDuplicateTitle) {
				m.formErr = "This book already exists in your library"
			} else {
				m.formErr = msg.err.Error()
			}
			return m, nil
		}
		m.closeForm()
		return m, nil
	case opErrMsg:
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.adding {
			return m.updateForm(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "a", "n":
		m.adding = true
		m.focus = fieldTitle
		return m, m.inputs[fieldTitle].Focus()
	case "right", "l":
		m.cursor++
	case "left", "h":
		m.cursor--
	case "down", "j":
		m.cursor += m.columns()
	case "up", "k":
		m.cursor -= m.columns()
	case " ", "r":
		if b, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error { return m.lib.ToggleRead(ctx, b.Title) })
		}
	case "d", "x":
		if b, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error { return m.lib.RemoveBook(ctx, b.Title) })
		}
	case "o":
		if m.lib.Mode() == library.ModeRemote {
			return m, m.run(m.lib.SignOut)
		}
	}
	m.clampCursor()
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		return m, m.setFocus((m.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
	case "enter":
		return m.submit()
	case " ":
		if m.focus == fieldRead {
			m.isRead = !m.isRead
			return m, nil
		}
	}
	if m.focus == fieldRead {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	form := addForm{
		Title:  strings.TrimSpace(m.inputs[fieldTitle].Value()),
		Author: strings.TrimSpace(m.inputs[fieldAuthor].Value()),
		Pages:  strings.TrimSpace(m.inputs[fieldPages].Value()),
	}
	if errs := validate.Struct(form); errs != nil {
		m.formErr = validate.First(errs)
		return m, nil
	}
	m.formErr = ""
	b := book.New(form.Title, form.Author, form.Pages, m.isRead)
	lib, ctx := m.lib, m.ctx
	return m, func() tea.Msg {
		return addedMsg{err: lib.AddBook(ctx, b)}
	}
}

// run wraps a session call as a command. Failures are reported with opErrMsg.
func (m Model) run(op func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := op(ctx); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m *Model) closeForm() {
	m.adding = false
	m.formErr = ""
	m.isRead = false
	m.focus = fieldTitle
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
}

func (m Model) selected() (book.Book, bool) {
	if m.cursor < 0 || m.cursor >= len(m.books) {
		return book.Book{}, false
	}
	return m.books[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.books) {
		m.cursor = len(m.books) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) columns() int {
	return max(1, m.width/cardWidth)
}

func (m Model) View() string {
	var sb strings.Builder

	read := 0
	for _, b := range m.books {
		if b.IsRead {
			read++
		}
	}
	sb.WriteString(headerStyle.Render("Library"))
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d books, %d read", len(m.books), read)))
	sb.WriteString("\n\n")

	if len(m.books) == 0 {
		sb.WriteString(mutedStyle.Render("No books yet. Press a to add one."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.grid())
		sb.WriteString("\n")
	}

	if m.adding {
		sb.WriteString(m.formView())
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(m.statusBar())
	return sb.String()
}

func (m Model) grid() string {
	cols := m.columns()
	var rows []string
	for start := 0; start < len(m.books); start += cols {
		end := min(start+cols, len(m.books))
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, renderCard(m.books[i], i == m.cursor && !m.adding))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(b book.Book, selected bool) string {
	status := unreadStyle.Render("Not read")
	if b.IsRead {
		status = readStyle.Render("Read")
	}
	body := strings.Join([]string{
		titleStyle.Render(b.Title),
		"by " + b.Author,
		b.Pages + " pages",
		status,
	}, "\n")
	if selected {
		return selectedCardStyle.Render(body)
	}
	return cardStyle.Render(body)
}

func (m Model) formView() string {
	lines := []string{headerStyle.Render("Add a book")}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	box := "[ ]"
	if m.isRead {
		box = "[x]"
	}
	checkbox := box + " Read"
	if m.focus == fieldRead {
		checkbox = titleStyle.Render(checkbox)
	}
	lines = append(lines, checkbox)
	if m.formErr != "" {
		lines = append(lines, errorStyle.Render(m.formErr))
	}
	lines = append(lines, mutedStyle.Render("tab next · enter save · esc cancel"))
	return formStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) statusBar() string {
	mode := "local library"
	help := "a add · space toggle read · d remove · q quit"
	if m.lib.Mode() == library.ModeRemote {
		mode = "signed in as " + m.lib.OwnerID()
		help = "a add · space toggle read · d remove · o sign out · q quit"
	}
	return statusStyle.Render(mode) + " " + mutedStyle.Render(help)
}
