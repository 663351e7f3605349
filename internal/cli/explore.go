package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tablescope/tablescope/pkg/lineage"
)

// exploreCommand creates the "explore" command: an interactive lineage
// explorer driven by the session coordinator.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		entityType string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "explore <fqn>",
		Short: "Explore table lineage interactively",
		Long: `Open an interactive explorer around a center table. Nodes can be
expanded and collapsed in either direction; the view recomputes live.

Keys:
  up/down    select node
  u / U      expand / collapse upstream at the selected node
  d / D      expand / collapse downstream
  s          save the working graph to <fqn>.json
  q          quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fqn := args[0]

			backend := c.newCacheBackend(ctx, noCache)
			defer backend.Close()
			gateway, err := c.newGateway(backend)
			if err != nil {
				return err
			}

			transport := lineage.NewChannelTransport(16)
			session, err := lineage.OpenSession(ctx, fqn, lineage.SessionConfig{
				Gateway:    gateway,
				Positioner: c.newLayoutEngine(),
				Transport:  transport,
				Logger:     c.Logger,
				EntityType: entityType,
			})
			if err != nil {
				return err
			}
			defer session.Close()

			model := newExploreModel(ctx, session, transport)
			model.view = session.Recompute(ctx)

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "table", "catalog entity type")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}

// =============================================================================
// ExploreModel - Interactive lineage exploration
// =============================================================================

// Node role markers in the explorer list.
const (
	markCenter     = "◉"
	markUpstream   = "←"
	markDownstream = "→"
)

var (
	exploreSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	exploreNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	exploreCenterStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	exploreDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// exploreEventMsg wraps a session event for bubbletea.
type exploreEventMsg lineage.Event

// exploreOpDoneMsg reports a finished expand/collapse call.
type exploreOpDoneMsg struct{ err error }

// exploreModel is the bubbletea model for the lineage explorer.
type exploreModel struct {
	ctx     context.Context
	session *lineage.Session
	events  *lineage.ChannelTransport

	view   lineage.View
	cursor int
	status string
	height int
	offset int
}

func newExploreModel(ctx context.Context, session *lineage.Session, events *lineage.ChannelTransport) *exploreModel {
	return &exploreModel{
		ctx:     ctx,
		session: session,
		events:  events,
		height:  15,
	}
}

// waitForEvent blocks on the session transport until the next event.
func (m *exploreModel) waitForEvent() tea.Msg {
	select {
	case <-m.ctx.Done():
		return tea.Quit()
	case e := <-m.events.Events():
		return exploreEventMsg(e)
	}
}

func (m *exploreModel) Init() tea.Cmd {
	return m.waitForEvent
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 5)

	case exploreEventMsg:
		switch msg.Type {
		case lineage.EventGraphUpdated:
			if msg.View != nil && msg.View.Generation >= m.view.Generation {
				m.view = *msg.View
				m.clampCursor()
			}
		case lineage.EventExpandFailed:
			m.status = "no additional lineage: " + msg.Message
		case lineage.EventSessionClosed:
			return m, tea.Quit
		}
		return m, m.waitForEvent

	case exploreOpDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
	}
	return m, nil
}

func (m *exploreModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
		}

	case "down", "j":
		if m.cursor < len(m.view.Nodes)-1 {
			m.cursor++
			if m.cursor >= m.offset+m.height {
				m.offset = m.cursor - m.height + 1
			}
		}

	case "u":
		if n, ok := m.selected(); ok && n.CanExpandUpstream {
			return m, m.op(n.Key, lineage.DirectionUpstream, true)
		}
	case "U":
		if n, ok := m.selected(); ok && n.CanCollapseUpstream {
			return m, m.op(n.Key, lineage.DirectionUpstream, false)
		}
	case "d":
		if n, ok := m.selected(); ok && n.CanExpandDownstream {
			return m, m.op(n.Key, lineage.DirectionDownstream, true)
		}
	case "D":
		if n, ok := m.selected(); ok && n.CanCollapseDownstream {
			return m, m.op(n.Key, lineage.DirectionDownstream, false)
		}

	case "s":
		path := m.session.Center().Key() + ".json"
		if err := lineage.WriteGraphFile(m.session.ExportGraph(), path); err != nil {
			m.status = err.Error()
		} else {
			m.status = "saved " + path
		}
	}
	return m, nil
}

func (m *exploreModel) selected() (lineage.RenderableNode, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Nodes) {
		return lineage.RenderableNode{}, false
	}
	return m.view.Nodes[m.cursor], true
}

// op runs an expand or collapse off the UI goroutine; the resulting view
// arrives as a graph-updated event.
func (m *exploreModel) op(key string, dir lineage.Direction, expand bool) tea.Cmd {
	m.status = ""
	return func() tea.Msg {
		var err error
		if expand {
			err = m.session.Expand(m.ctx, key, dir)
		} else {
			err = m.session.Collapse(m.ctx, key, dir)
		}
		return exploreOpDoneMsg{err: err}
	}
}

func (m *exploreModel) clampCursor() {
	if m.cursor >= len(m.view.Nodes) {
		m.cursor = max(len(m.view.Nodes)-1, 0)
	}
	if m.offset > m.cursor {
		m.offset = m.cursor
	}
}

func (m *exploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Lineage: " + m.session.Center().Label()))
	b.WriteString("\n")
	b.WriteString(exploreDimStyle.Render("↑/↓ select  u/U expand/collapse upstream  d/D downstream  s save  q quit"))
	b.WriteString("\n\n")

	end := min(m.offset+m.height, len(m.view.Nodes))
	for i := m.offset; i < end; i++ {
		n := m.view.Nodes[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		mark := markUpstream
		switch n.Role {
		case lineage.RoleCenter:
			mark = markCenter
		case lineage.RoleDownstream:
			mark = markDownstream
		}

		line := fmt.Sprintf("%s%s %-40s %s", cursor, mark, n.Entity.Label(), exploreDimStyle.Render(capabilityHint(n)))
		switch {
		case i == m.cursor:
			b.WriteString(exploreSelectedStyle.Render(line))
		case n.Role == lineage.RoleCenter:
			b.WriteString(exploreCenterStyle.Render(line))
		default:
			b.WriteString(exploreNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	footer := fmt.Sprintf("  %d nodes · %d edges", len(m.view.Nodes), len(m.view.Edges))
	if m.view.LayoutFallback {
		footer += " · column layout"
	}
	b.WriteString(exploreDimStyle.Render(footer))
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("  " + m.status))
	}
	return b.String()
}

// capabilityHint summarizes the controls available at a node.
func capabilityHint(n lineage.RenderableNode) string {
	var hints []string
	if n.CanExpandUpstream {
		hints = append(hints, "u")
	}
	if n.CanCollapseUpstream {
		hints = append(hints, "U")
	}
	if n.CanExpandDownstream {
		hints = append(hints, "d")
	}
	if n.CanCollapseDownstream {
		hints = append(hints, "D")
	}
	if len(hints) == 0 {
		return ""
	}
	return "[" + strings.Join(hints, " ") + "]"
}
