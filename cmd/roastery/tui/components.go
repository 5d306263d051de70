package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmedMsg reports the answer of a ConfirmationDialog.
type confirmedMsg struct {
	yes bool
}

// ConfirmationDialog is a yes/no prompt. No is selected initially.
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a dialog.
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{Title: title, Message: message}
}

// Update moves the selection; enter answers with a confirmedMsg.
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "left", "h", "y":
		d.YesSelected = true
	case "right", "l", "n":
		d.YesSelected = false
	case "enter":
		yes := d.YesSelected
		return func() tea.Msg { return confirmedMsg{yes: yes} }
	}
	return nil
}

// View renders the dialog.
func (d ConfirmationDialog) View() string {
	yes := inactiveButtonStyle.Render("Yes")
	no := inactiveButtonStyle.Render("No")
	if d.YesSelected {
		yes = activeButtonStyle.Render("Yes")
	} else {
		no = activeButtonStyle.Render("No")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yes, "  ", no))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "choose") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc", "cancel")))
	return boxStyle.Render(b.String())
}

// Item is one runnable entry: a schema migration or a data migration.
type Item struct {
	Key    string
	Name   string
	Status string
	Detail string
}

func (i Item) FilterValue() string { return i.Key + " " + i.Name }

func (i Item) Title() string {
	if i.Name == "" || i.Name == i.Key {
		return FormatStatus(i.Status) + "  " + i.Key
	}
	return fmt.Sprintf("%s  %s - %s", FormatStatus(i.Status), i.Key, i.Name)
}

func (i Item) Description() string {
	if i.Detail != "" {
		return mutedStyle.Render(i.Detail)
	}
	return mutedStyle.Render("not applied")
}

// itemDelegate renders Items on two lines with a cursor.
type itemDelegate struct{}

func (itemDelegate) Height() int                             { return 2 }
func (itemDelegate) Spacing() int                            { return 1 }
func (itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (itemDelegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	i, ok := li.(Item)
	if !ok {
		return
	}
	if index == m.Index() {
		_, _ = fmt.Fprint(w, selectedItemStyle.Render("▸ "+i.Title()+"\n  "+i.Description()))
		return
	}
	_, _ = fmt.Fprint(w, unselectedItemStyle.Render(i.Title()+"\n"+i.Description()))
}

// ProgressView shows how far a run has come.
type ProgressView struct {
	Current int
	Total   int
	Message string
}

func (p ProgressView) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(FormatProgressBar(p.Current, p.Total, 40))
	return boxStyle.Render(b.String())
}

// LogView keeps the last MaxLen log lines.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a LogView.
func NewLogView(maxLen int) LogView {
	return LogView{MaxLen: maxLen}
}

// AddLog appends a line, dropping the oldest beyond MaxLen.
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[len(l.Logs)-l.MaxLen:]
	}
}

func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("no output yet")
	}
	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return boxStyle.Render(b.String())
}
