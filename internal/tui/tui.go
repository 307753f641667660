// Package tui is the interactive layer list: a nested, filterable view of one page with
// keyboard reorder, indent/outdent, lock, hide, duplicate, remove and undo.
package tui

import (
	"pagetree-cli/internal/editor"

	tea "github.com/charmbracelet/bubbletea"
)

func Run(ed *editor.Editor, pageID string) error {
	m := newLayerModel(ed, pageID)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
