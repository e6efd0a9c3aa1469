package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"adresse/internal/domain"
)

// ExtractPort is the TUI-facing subset of the extraction service.
type ExtractPort interface {
	Extract(ctx context.Context, sentence string) (domain.ExtractionResult, error)
}

type entry struct {
	sentence string
	result   domain.ExtractionResult
	err      error
	elapsed  time.Duration
}

type extractedMsg entry

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	service  ExtractPort
	input    textinput.Model
	viewport viewport.Model
	history  []entry
	subtitle string
	status   string
	cursor   int
	ready    bool
	busy     bool
}

// New creates a new TUI model instance. subtitle is shown under the title.
func New(ctx context.Context, service ExtractPort, subtitle string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Saisir une phrase contenant une adresse puis Entrée"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: vp,
		subtitle: subtitle,
		status:   "Prêt.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) extractCmd(sentence string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		res, err := m.service.Extract(m.ctx, sentence)
		return extractedMsg{sentence: sentence, result: res, err: err, elapsed: time.Since(start)}
	}
}

// Update handles key, window and extraction events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, subtitle, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case extractedMsg:
		m.busy = false
		m.history = append(m.history, entry(msg))
		m.cursor = len(m.history) - 1
		if msg.err != nil {
			m.status = "Erreur : " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Extrait en %d ms", msg.elapsed.Milliseconds())
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Extraction de %q...", q)
			m.input.SetValue("")
			return m, m.extractCmd(q)
		case "up":
			if len(m.history) > 0 {
				m.cursor = (m.cursor - 1 + len(m.history)) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "down":
			if len(m.history) > 0 {
				m.cursor = (m.cursor + 1) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and the selected history entry.
func (m Model) View() string {
	if !m.ready {
		return "Chargement..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Extraction d'adresses")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	statusStyle := okStatusStyle
	if len(m.history) > 0 && m.history[len(m.history)-1].err != nil && !m.busy {
		statusStyle = errStatusStyle
	}
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.history) == 0 {
		return "Aucune extraction pour l'instant."
	}
	e := m.history[m.cursor]
	title := fmt.Sprintf("Extraction %d/%d  %d ms", m.cursor+1, len(m.history), e.elapsed.Milliseconds())
	body := labelStyle.Render("phrase  ") + e.sentence + "\n\n"
	if e.err != nil {
		return title + "\n\n" + body + errStatusStyle.Render(e.err.Error())
	}
	commune := "null"
	if e.result.Commune != nil {
		commune = highlightStyle.Render(*e.result.Commune)
	}
	body += labelStyle.Render("adresse ") + e.result.FullText + "\n"
	body += labelStyle.Render("voie    ") + e.result.Voie + "\n"
	body += labelStyle.Render("commune ") + commune + "\n\n"
	raw, _ := json.Marshal(e.result)
	body += rawStyle.Render(string(raw))
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	rawStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
