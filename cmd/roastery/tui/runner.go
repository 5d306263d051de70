// Package tui holds the interactive terminal screens of the roastery CLI.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source supplies the items a Model lists and runs.
type Source interface {
	Title() string
	// Verb describes Run in prompts, e.g. "apply".
	Verb() string
	Load(ctx context.Context) ([]Item, error)
	Runnable(item Item) bool
	// Run executes item and returns a one-line summary.
	Run(ctx context.Context, item Item) (string, error)
}

type mode int

const (
	modeLoading mode = iota
	modeList
	modeConfirm
	modeRunning
	modeDone
	modeError
)

type (
	loadedMsg struct{ items []Item }
	ranMsg    struct {
		key     string
		summary string
		err     error
	}
	errMsg struct{ err error }
)

// Model lists the items of a Source and runs the one the user confirms.
type Model struct {
	ctx      context.Context
	src      Source
	mode     mode
	list     list.Model
	spinner  spinner.Model
	confirm  ConfirmationDialog
	progress ProgressView
	logs     LogView
	err      error
	width    int
	height   int
}

// NewModel creates a Model for src.
func NewModel(ctx context.Context, src Source) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = src.Title()
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	return Model{
		ctx:     ctx,
		src:     src,
		mode:    modeLoading,
		list:    l,
		spinner: sp,
		logs:    NewLogView(8),
	}
}

// Err is the failure that ended the session, if any.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m Model) load() tea.Cmd {
	ctx, src := m.ctx, m.src
	return func() tea.Msg {
		items, err := src.Load(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return loadedMsg{items: items}
	}
}

func (m Model) run(item Item) tea.Cmd {
	ctx, src := m.ctx, m.src
	return func() tea.Msg {
		summary, err := src.Run(ctx, item)
		return ranMsg{key: item.Key, summary: summary, err: err}
	}
}

func (m Model) selected() (Item, bool) {
	item, ok := m.list.SelectedItem().(Item)
	return item, ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.mode = modeList
		items := make([]list.Item, len(msg.items))
		for i, it := range msg.items {
			items[i] = it
		}
		return m, m.list.SetItems(items)

	case errMsg:
		m.mode = modeError
		m.err = msg.err
		return m, nil

	case confirmedMsg:
		item, ok := m.selected()
		if !msg.yes || !ok {
			m.mode = modeList
			return m, nil
		}
		m.mode = modeRunning
		m.progress = ProgressView{Total: 1, Message: fmt.Sprintf("%s %s", m.src.Verb(), item.Key)}
		return m, m.run(item)

	case ranMsg:
		if msg.err != nil {
			m.mode = modeError
			m.err = fmt.Errorf("%s: %w", msg.key, msg.err)
			m.logs.AddLog(dangerStyle.Render("✗ " + msg.key))
			return m, nil
		}
		m.mode = modeDone
		m.progress.Current = m.progress.Total
		m.logs.AddLog(successStyle.Render("✓ ") + msg.summary)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.mode == modeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeList:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch key.String() {
		case "q":
			return m, tea.Quit
		case "enter", " ":
			item, ok := m.selected()
			if !ok || !m.src.Runnable(item) {
				return m, nil
			}
			m.confirm = NewConfirmationDialog(
				"Confirm",
				fmt.Sprintf("%s %s?", m.src.Verb(), item.Key),
			)
			m.mode = modeConfirm
			return m, nil
		}

	case modeConfirm:
		if s := key.String(); s == "esc" || s == "q" {
			m.mode = modeList
			return m, nil
		}
		return m, m.confirm.Update(key)

	case modeDone:
		switch key.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			m.mode = modeLoading
			return m, m.load()
		}
		return m, nil

	case modeError:
		if s := key.String(); s == "q" || s == "enter" {
			return m, tea.Quit
		}
		return m, nil

	default:
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(key)
	return m, cmd
}

func (m Model) center(s string) string {
	if m.width == 0 || m.height == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m Model) View() string {
	switch m.mode {
	case modeLoading:
		return m.center(m.spinner.View() + " loading " + m.src.Title())
	case modeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("/", "filter") + " • " +
				FormatKey("enter", m.src.Verb()) + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)
	case modeConfirm:
		return m.center(m.confirm.View())
	case modeRunning:
		return m.center(lipgloss.JoinVertical(lipgloss.Left,
			m.progress.View(),
			m.spinner.View()+" working",
		))
	case modeDone:
		return m.center(lipgloss.JoinVertical(lipgloss.Left,
			m.progress.View(),
			m.logs.View(),
			helpStyle.Render(FormatKey("enter", "back to list")+" • "+FormatKey("q", "quit")),
		))
	case modeError:
		return m.center(boxStyle.Render(
			titleStyle.Render("Failed") + "\n\n" +
				dangerStyle.Render(m.err.Error()) + "\n" +
				helpStyle.Render(FormatKey("enter/q", "exit")),
		))
	}
	return ""
}

// Run shows src until the user quits and returns the error that ended the
// session, if any.
func Run(ctx context.Context, src Source) error {
	final, err := tea.NewProgram(NewModel(ctx, src), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
