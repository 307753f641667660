package tui

import (
	"fmt"
	"strings"

	"pagetree-cli/internal/editor"
	"pagetree-cli/internal/model"
	"pagetree-cli/internal/mutate"
	"pagetree-cli/internal/order"
	"pagetree-cli/internal/persist"
	"pagetree-cli/internal/store"
	"pagetree-cli/internal/tree"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxHistory = 50

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	lockedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#b35900", Dark: "#ffaf00"})
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#ff6b6b"})
	footerStyle = lipgloss.NewStyle().Faint(true)
)

type failureMsg struct{ err *persist.Error }

// layerModel is a keyboard-driven layer list over one page. Rows may be filtered, but every
// reorder resolves indices against the full sibling groups from the editor.
type layerModel struct {
	ed       *editor.Editor
	pageID   string
	pageName string

	rows      []tree.Row
	cursor    int
	collapsed map[string]bool

	filter    textinput.Model
	filtering bool

	history []store.Snapshot
	status  string
	err     error

	width  int
	height int
}

func newLayerModel(ed *editor.Editor, pageID string) layerModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter layers"
	ti.CharLimit = 80

	m := layerModel{ed: ed, pageID: pageID, collapsed: map[string]bool{}, filter: ti}
	for _, p := range ed.Pages() {
		if p.ID == pageID {
			m.pageName = p.Name
		}
	}
	m.refresh()
	return m
}

func (m layerModel) Init() tea.Cmd {
	return waitFailure(m.ed.Failures())
}

func waitFailure(ch <-chan *persist.Error) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return failureMsg{err: f}
	}
}

// refresh rebuilds the visible rows and keeps the cursor on the same node when possible.
func (m *layerModel) refresh() {
	selected := m.selectedID()
	nodes := m.ed.Nodes(m.pageID)
	if q := strings.TrimSpace(m.filter.Value()); q != "" {
		nodes = tree.Filter(nodes, tree.MatchQuery(q))
	}
	m.rows = tree.Flatten(tree.Build(nodes), m.collapsed)
	m.selectID(selected)
}

func (m *layerModel) selectID(id string) {
	for i, r := range m.rows {
		if r.Node.ID == id {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m layerModel) selectedID() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.rows[m.cursor].Node.ID
}

func (m layerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case failureMsg:
		m.err = msg.err
		return m, waitFailure(m.ed.Failures())
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m layerModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.filter.SetValue("")
		m.filter.Blur()
		m.filtering = false
		m.refresh()
		return m, nil
	case "enter":
		m.filter.Blur()
		m.filtering = false
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refresh()
	return m, cmd
}

func (m layerModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.refresh()
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "enter", " ":
		if id := m.selectedID(); id != "" {
			m.collapsed[id] = !m.collapsed[id]
			m.refresh()
		}
	case "K", "shift+up":
		m.shift(-1)
	case "J", "shift+down":
		m.shift(+1)
	case "tab", ">":
		m.indent()
	case "shift+tab", "<":
		m.outdent()
	case "l":
		m.toggle(func(n model.Node, p *mutate.Patch) { v := !n.Locked; p.Locked = &v })
	case "v":
		m.toggle(func(n model.Node, p *mutate.Patch) { v := !n.Hidden; p.Hidden = &v })
	case "d":
		m.duplicate()
	case "x", "delete":
		m.remove()
	case "u":
		m.undo()
	}
	return m, nil
}

func (m *layerModel) selected() (model.Node, bool) {
	id := m.selectedID()
	if id == "" {
		return model.Node{}, false
	}
	return m.ed.Node(id)
}

// apply records an undo point, runs op and refreshes. A rejected op drops the undo point.
// op may name a node to select afterwards.
func (m *layerModel) apply(label string, op func() (string, error)) {
	snap := m.ed.Snapshot()
	sel, err := op()
	if err != nil {
		m.err = err
		return
	}
	m.history = append(m.history, snap)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.err = nil
	m.status = label
	m.refresh()
	if sel != "" {
		m.selectID(sel)
	}
}

// shift moves the selected node one slot within its full sibling group.
func (m *layerModel) shift(delta int) {
	n, ok := m.selected()
	if !ok {
		return
	}
	group := m.group(n.ParentID)
	idx := order.IndexOf(group, n.ID)
	to := idx + delta
	if idx < 0 || to < 0 || to >= len(group) {
		return
	}
	m.apply("moved", func() (string, error) {
		_, err := m.ed.Move(n.ID, n.ParentID, to)
		return "", err
	})
}

// indent moves the node into its previous sibling, appended last.
func (m *layerModel) indent() {
	n, ok := m.selected()
	if !ok {
		return
	}
	group := m.group(n.ParentID)
	idx := order.IndexOf(group, n.ID)
	if idx <= 0 {
		m.status = "nothing to indent into"
		return
	}
	prev := group[idx-1]
	pid := prev.ID
	m.apply("indented", func() (string, error) {
		_, err := m.ed.Move(n.ID, &pid, order.AppendIndex(m.group(&pid), n.ID))
		if err == nil {
			delete(m.collapsed, pid)
		}
		return "", err
	})
}

// outdent moves the node out of its parent, right after it.
func (m *layerModel) outdent() {
	n, ok := m.selected()
	if !ok || n.ParentID == nil {
		return
	}
	parent, ok := m.ed.Node(*n.ParentID)
	if !ok {
		return
	}
	m.apply("outdented", func() (string, error) {
		_, err := m.ed.Move(n.ID, parent.ParentID, order.IndexOf(m.group(parent.ParentID), parent.ID)+1)
		return "", err
	})
}

func (m *layerModel) toggle(set func(n model.Node, p *mutate.Patch)) {
	n, ok := m.selected()
	if !ok {
		return
	}
	var patch mutate.Patch
	set(n, &patch)
	m.apply("updated", func() (string, error) {
		_, err := m.ed.Update(n.ID, patch)
		return "", err
	})
}

func (m *layerModel) duplicate() {
	n, ok := m.selected()
	if !ok {
		return
	}
	m.apply("duplicated", func() (string, error) {
		res, err := m.ed.Duplicate(n.ID)
		return res.Node.ID, err
	})
}

func (m *layerModel) remove() {
	n, ok := m.selected()
	if !ok {
		return
	}
	m.apply("removed", func() (string, error) {
		_, err := m.ed.Remove(n.ID, "")
		return "", err
	})
}

func (m *layerModel) undo() {
	if len(m.history) == 0 {
		m.status = "nothing to undo"
		return
	}
	snap := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.ed.Restore(snap)
	m.err = nil
	m.status = "undone"
	m.refresh()
}

func (m *layerModel) group(parentID *string) []*model.Node {
	sibs := m.ed.Siblings(m.pageID, parentID)
	out := make([]*model.Node, len(sibs))
	for i := range sibs {
		out[i] = &sibs[i]
	}
	return out
}

func (m layerModel) View() string {
	page := m.pageName
	if page == "" {
		page = m.pageID
	}
	header := headerStyle.Render(fmt.Sprintf("pagetree  Page=%s  Layers=%d", page, len(m.rows)))

	var b strings.Builder
	if len(m.rows) == 0 {
		b.WriteString(mutedStyle.Render("No layers."))
	}
	for i, r := range m.rows {
		line := renderRow(r)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(m.rows)-1 {
			b.WriteByte('\n')
		}
	}

	parts := []string{header}
	if m.filtering || m.filter.Value() != "" {
		parts = append(parts, m.filter.View())
	}
	parts = append(parts, b.String())
	switch {
	case m.err != nil:
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%s: %v", mutate.CodeOf(m.err), m.err)))
	case m.status != "":
		parts = append(parts, mutedStyle.Render(m.status))
	}
	parts = append(parts, footerStyle.Render("j/k: select  J/K: move  tab/shift+tab: indent/outdent  enter: fold  l: lock  v: hide  d: dup  x: remove  u: undo  /: filter  q: quit"))
	return strings.Join(parts, "\n\n")
}

func renderRow(r tree.Row) string {
	marker := "  "
	if r.HasChildren {
		marker = "▾ "
		if r.Collapsed {
			marker = "▸ "
		}
	}
	name := r.Node.DisplayName()
	if r.Node.Hidden {
		name = mutedStyle.Render(name + " (hidden)")
	}
	line := strings.Repeat("  ", r.Depth) + marker + name
	if r.Node.Label != nil && *r.Node.Label != "" {
		line += " " + mutedStyle.Render(r.Node.DefinitionID)
	}
	if r.Node.Locked {
		line += " " + lockedStyle.Render("[locked]")
	}
	return line
}
