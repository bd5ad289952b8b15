package ui

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/pmrun/internal/inputrouter"
	"gitlab.com/tinyland/lab/pmrun/internal/orchestrator"
	"gitlab.com/tinyland/lab/pmrun/internal/uiflush"
)

// refreshInterval bounds the UI's own redraw rate; the data feeding it is
// already rate-limited by uiflush.Handler, so this only needs to be fast
// enough to feel live (spec.md §[ADD] A4).
const refreshInterval = 33 * time.Millisecond

// tickMsg drives the periodic re-render, following the teacher's
// pkg/app.TickEvent shape.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the root bubbletea model for the multi-tab dashboard.
type Model struct {
	orch    *orchestrator.Orchestrator
	flusher *uiflush.Handler
	router  *inputrouter.Router
	cancel  context.CancelFunc

	names   []string
	focused int
	width   int
	height  int
	help    bool
	quit    bool

	savedLogPath string
	saveErr      string
}

// New builds a Model for orch's jobs, routing keys through router and
// reading batched UI state through flusher.
func New(orch *orchestrator.Orchestrator, flusher *uiflush.Handler, router *inputrouter.Router, cancel context.CancelFunc) Model {
	names := make([]string, 0)
	for _, j := range orch.Jobs() {
		names = append(names, j.Name)
	}
	return Model{orch: orch, flusher: flusher, router: router, cancel: cancel, names: names}
}

// Init starts the refresh ticker (spec.md §[ADD] A4).
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles bubbletea messages: window resize, the refresh tick, and
// every keystroke routed through internal/inputrouter.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, j := range m.orch.Jobs() {
			j.Screen.Resize(msg.Width, msg.Height-3)
			if j.Runner != nil {
				_ = j.Runner.Resize(msg.Width, msg.Height-3)
			}
		}
		return m, nil

	case tickMsg:
		if m.quit {
			return m, nil
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help {
		m.help = false
		return m, nil
	}

	action, raw, isNav := m.router.Route(msg.String())
	if !isNav {
		if j, ok := m.currentJob(); ok && j.Runner != nil {
			_ = j.Runner.Write(raw)
		}
		return m, nil
	}

	switch action {
	case inputrouter.ActionQuit:
		m.quit = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case inputrouter.ActionNextTab:
		m.focused = (m.focused + 1) % max(1, len(m.names))
	case inputrouter.ActionPrevTab:
		m.focused = (m.focused - 1 + len(m.names)) % max(1, len(m.names))
	case inputrouter.ActionShowHelp, inputrouter.ActionHelp:
		m.help = true
	case inputrouter.ActionScrollUp:
		if j, ok := m.currentJob(); ok {
			j.Screen.ScrollUp(j.Screen.Rows() / 2)
		}
	case inputrouter.ActionScrollDown:
		if j, ok := m.currentJob(); ok {
			j.Screen.ScrollDown(j.Screen.Rows() / 2)
		}
	case inputrouter.ActionScrollTop:
		if j, ok := m.currentJob(); ok {
			j.Screen.ScrollToTop()
		}
	case inputrouter.ActionScrollBottom:
		if j, ok := m.currentJob(); ok {
			j.Screen.ScrollToBottom()
		}
	case inputrouter.ActionPauseResume:
		if j, ok := m.currentJob(); ok && j.Runner != nil {
			j.Runner.Continue()
		}
	case inputrouter.ActionRetryPhase:
		if j, ok := m.currentJob(); ok && j.Runner != nil {
			go j.Runner.Retry(context.Background())
		}
	case inputrouter.ActionSaveLogs:
		m.saveFocusedLog()
	default:
		for i := 1; i <= 9; i++ {
			if action == inputrouter.Action("tab_"+string(rune('0'+i))) && i-1 < len(m.names) {
				m.focused = i - 1
			}
		}
	}
	return m, nil
}

func (m Model) currentJob() (*orchestrator.Job, bool) {
	if m.focused < 0 || m.focused >= len(m.names) {
		return nil, false
	}
	return m.orch.Job(m.names[m.focused])
}

// saveFocusedLog writes the focused tab's visible screen content to a file
// under the current directory, named <job>.pmrun.log.
func (m *Model) saveFocusedLog() {
	j, ok := m.currentJob()
	if !ok {
		return
	}
	path := j.Name + ".pmrun.log"
	content := renderScreen(j.Screen)
	if err := os.WriteFile(path, []byte(stripANSI(content)), 0o644); err != nil {
		m.saveErr = err.Error()
		return
	}
	m.savedLogPath = path
}

// View renders the current frame (spec.md §[ADD] A4).
func (m Model) View() string {
	if m.quit {
		return ""
	}
	jobs := m.orch.Jobs()
	if m.help {
		return helpOverlay()
	}
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}
	return renderTab(jobs, m.focused, m.width, m.height, m.flusher)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
