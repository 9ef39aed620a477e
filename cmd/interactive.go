package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sheepdog/clusterdrv/cluster"
	"github.com/sheepdog/clusterdrv/gcs"
	"github.com/sheepdog/clusterdrv/logger"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start interactive cluster dashboard",
	Long: `Start an interactive terminal UI that runs several
cluster.Driver instances against a shared in-process gcs.LocalHub and
shows each one's roster, master status, and queue depth.

Keyboard shortcuts:
  C - Create a new node
  D - Delete a node (shows selection menu)
  Q - Quit

Examples:
  clusterdrv interactive`,
	Run: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// nodeView is one node's display state as of the last refresh tick.
type nodeView struct {
	name string
	snap cluster.Snapshot
	err  error
}

type model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	manager *cluster.Manager

	views        []nodeView
	deleteMode   bool
	selected     int
	err          error
	logBuffer    *logger.LogBuffer
	logScroll    int
	width        int
	height       int
	lastCommand  string
	numericInput string
}

func initialModel() model {
	logBuffer := logger.GetGlobalLogBuffer()
	logger.Init("", false)
	logger.AddOutput(logger.NewLogBufferWriter(logBuffer))

	ctx, cancel := context.WithCancel(context.Background())
	hub := gcs.NewHub(64)
	manager := cluster.NewManager(hub, logger.Infof)

	return model{
		ctx:          ctx,
		cancel:       cancel,
		manager:      manager,
		deleteMode:   false,
		selected:     0,
		logBuffer:    logBuffer,
		logScroll:    0,
		numericInput: "",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), refreshNodes(m.ctx, m.manager))
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

func refreshNodes(ctx context.Context, manager *cluster.Manager) tea.Cmd {
	return func() tea.Msg {
		names := manager.Nodes()
		views := make([]nodeView, len(names))
		for i, name := range names {
			drv := manager.Driver(name)
			if drv == nil {
				views[i] = nodeView{name: name, err: fmt.Errorf("driver gone")}
				continue
			}
			snapCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			snap, err := drv.Snapshot(snapCtx)
			cancel()
			views[i] = nodeView{name: name, snap: snap, err: err}
		}
		return nodesUpdatedMsg{views: views}
	}
}

type nodesUpdatedMsg struct {
	views []nodeView
}

type quitMsg struct{}

type shutdownCompleteMsg struct{}

func shutdownNodes(m model) tea.Cmd {
	return func() tea.Msg {
		m.manager.StopAll()
		m.cancel()
		return shutdownCompleteMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, shutdownNodes(m)
		}

		if m.deleteMode {
			return m.handleDeleteMode(msg)
		}

		switch msg.String() {
		case "c", "C":
			_, _, err := m.manager.AddNode(m.ctx, newLogUpcalls, nil)
			if err != nil {
				m.err = err
			} else {
				m.err = nil
				m.lastCommand = "create"
			}
			return m, refreshNodes(m.ctx, m.manager)

		case "d", "D":
			if len(m.views) == 0 {
				m.err = fmt.Errorf("no nodes to delete")
				return m, nil
			}
			m.deleteMode = true
			m.selected = 0
			m.numericInput = ""
			return m, nil

		case "enter":
			if m.lastCommand == "" {
				return m, nil
			}
			if strings.HasPrefix(m.lastCommand, "delete:") {
				name := strings.TrimPrefix(m.lastCommand, "delete:")
				if err := m.manager.RemoveNode(name); err != nil {
					m.err = err
				} else {
					m.err = nil
				}
				return m, refreshNodes(m.ctx, m.manager)
			} else if m.lastCommand == "create" {
				_, _, err := m.manager.AddNode(m.ctx, newLogUpcalls, nil)
				if err != nil {
					m.err = err
				} else {
					m.err = nil
				}
				return m, refreshNodes(m.ctx, m.manager)
			}
			return m, nil

		case "esc":
			m.deleteMode = false
			m.selected = 0
			m.err = nil
			return m, nil

		case "up", "k":
			allEntries := m.logBuffer.GetAll()
			maxScroll := len(allEntries) - 15
			if maxScroll < 0 {
				maxScroll = 0
			}
			if m.logScroll < maxScroll {
				m.logScroll++
			}
			return m, nil

		case "down", "j":
			if m.logScroll > 0 {
				m.logScroll--
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(tick(), refreshNodes(m.ctx, m.manager))

	case nodesUpdatedMsg:
		m.views = msg.views
		return m, nil

	case shutdownCompleteMsg:
		return m, tea.Quit

	case quitMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m model) handleDeleteMode(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.deleteMode = false
			m.selected = 0
			m.err = nil
			m.numericInput = ""
			return m, nil

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.views)-1 {
				m.selected++
			}
			return m, nil

		case "enter", " ":
			index := m.selected
			if m.numericInput != "" {
				num, err := strconv.Atoi(m.numericInput)
				if err != nil {
					m.err = fmt.Errorf("invalid number: %s", m.numericInput)
					m.numericInput = ""
					return m, nil
				}
				if num < 1 || num > len(m.views) {
					m.err = fmt.Errorf("node %d does not exist (max: %d)", num, len(m.views))
					m.numericInput = ""
					return m, nil
				}
				index = num - 1
				m.numericInput = ""
			}
			name := m.views[index].name
			if err := m.manager.RemoveNode(name); err != nil {
				m.err = err
			} else {
				m.deleteMode = false
				m.selected = 0
				m.err = nil
				m.lastCommand = "delete:" + name
			}
			return m, refreshNodes(m.ctx, m.manager)

		default:
			keyStr := msg.String()
			if len(keyStr) == 1 && keyStr >= "0" && keyStr <= "9" {
				m.numericInput += keyStr
				if m.err != nil && strings.Contains(m.err.Error(), "does not exist") {
					m.err = nil
				}
				return m, nil
			}
			m.numericInput = ""
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Padding(1, 2)
	s.WriteString(titleStyle.Render("Cluster Driver Dashboard"))
	s.WriteString("\n\n")

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	if len(m.views) == 0 {
		s.WriteString("No nodes running.\n\n")
	} else {
		s.WriteString("Running Nodes:\n\n")
		for i, v := range m.views {
			line := formatNodeLine(i, v)
			if m.deleteMode && i == m.selected {
				nodeStyle := lipgloss.NewStyle().
					PaddingLeft(2).
					Foreground(lipgloss.Color("196")).
					Bold(true)
				s.WriteString(nodeStyle.Render("> " + line))
			} else {
				s.WriteString("  " + line)
			}
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")

	allEntries := m.logBuffer.GetAll()
	totalCount := len(allEntries)
	logCount := 15

	var logLines []string
	if totalCount == 0 {
		logLines = []string{"     | (no logs yet)"}
	} else {
		start := totalCount - logCount - m.logScroll
		if start < 0 {
			start = 0
		}
		end := totalCount - m.logScroll
		if end > totalCount {
			end = totalCount
		}
		if end < start {
			end = start
		}
		entries := allEntries[start:end]
		for i := len(entries) - 1; i >= 0; i-- {
			lineNumber := start + i
			logLines = append(logLines, fmt.Sprintf("%4d | %s", lineNumber, logger.FormatLogEntry(entries[i])))
		}
	}

	boxWidth := 100
	if m.width > 0 {
		boxWidth = m.width - 4
	}
	logContent := "Logs:\n" + strings.Join(logLines, "\n")
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Height(13).
		Width(boxWidth)
	s.WriteString(logStyle.Render(logContent))
	s.WriteString("\n\n")

	instructionsStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true).
		PaddingTop(1)

	if m.deleteMode {
		helpText := fmt.Sprintf("DELETE MODE: Use ↑/↓/j/k or type node number (1-%d), Enter to confirm, Esc to cancel", len(m.views))
		if m.numericInput != "" {
			helpText = fmt.Sprintf("DELETE MODE: Type node number (current: %s) or Enter to confirm, Esc to cancel", m.numericInput)
		}
		s.WriteString(instructionsStyle.Render(helpText))
	} else {
		instructionText := "Press C to create a node | D to delete a node"
		if m.lastCommand != "" {
			instructionText += fmt.Sprintf(" | Enter to repeat (%s)", m.lastCommand)
		} else {
			instructionText += " | Enter to repeat last command"
		}
		instructionText += " | ↑/↓/j/k to scroll logs | Q to quit"
		s.WriteString(instructionsStyle.Render(instructionText))
	}

	return s.String()
}

func formatNodeLine(i int, v nodeView) string {
	if v.err != nil {
		return fmt.Sprintf("[%d] %s: snapshot error: %v", i+1, v.name, v.err)
	}
	role := "member"
	if v.snap.IsMaster {
		role = "master"
	}
	state := "joining"
	if v.snap.JoinFinished {
		state = "joined"
	}
	return fmt.Sprintf("[%d] %s self=%s role=%s state=%s roster=%d block_q=%d nonblock_q=%d",
		i+1, v.name, v.snap.Self, role, state, len(v.snap.Roster), v.snap.BlockQueue, v.snap.NonblockQueue)
}

func runInteractive(cmd *cobra.Command, args []string) {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running interactive mode: %v\n", err)
	}
}
