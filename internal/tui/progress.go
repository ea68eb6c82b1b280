package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
)

// RunFunc performs the enrichment, calling progress once per finished topic.
type RunFunc func(ctx context.Context, progress func(enrich.Topic)) []enrich.Topic

type topicState struct {
	name   string
	result *enrich.Topic
}

// Progress is the bubbletea model shown while topics are enriched.
type Progress struct {
	ctx     context.Context
	cancel  context.CancelFunc
	run     RunFunc
	updates chan enrich.Topic

	topics    []topicState
	results   []enrich.Topic
	done      int
	failed    int
	finished  bool
	cancelled bool

	spinner spinner.Model
	width   int
}

func newProgress(ctx context.Context, topics []string, run RunFunc) *Progress {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	states := make([]topicState, len(topics))
	for i, t := range topics {
		states[i] = topicState{name: t}
	}
	return &Progress{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		updates: make(chan enrich.Topic, len(topics)),
		topics:  states,
		spinner: sp,
		width:   80,
	}
}

func (m *Progress) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.waitForTopic())
}

// start runs the enrichment off the UI goroutine. The update channel is
// buffered for every topic so progress callbacks never block.
func (m *Progress) start() tea.Cmd {
	ctx, run, updates := m.ctx, m.run, m.updates
	return func() tea.Msg {
		results := run(ctx, func(t enrich.Topic) { updates <- t })
		return allDoneMsg{results: results}
	}
}

func (m *Progress) waitForTopic() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return topicDoneMsg{topic: <-updates}
	}
}

func (m *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			m.cancel()
			return m, tea.Quit
		}
		return m, nil

	case topicDoneMsg:
		m.record(msg.topic)
		if m.done < len(m.topics) {
			return m, m.waitForTopic()
		}
		return m, nil

	case allDoneMsg:
		m.results = msg.results
		m.finished = true
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Progress) record(t enrich.Topic) {
	for i := range m.topics {
		if m.topics[i].name == t.Topic && m.topics[i].result == nil {
			m.topics[i].result = &t
			break
		}
	}
	m.done++
	if t.Error != "" {
		m.failed++
	}
}

func (m *Progress) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Enriching %d topics", len(m.topics))))
	b.WriteString("\n\n")

	for _, st := range m.topics {
		switch r := st.result; {
		case r == nil:
			b.WriteString(" " + m.spinner.View() + " " + st.name)
		case r.Error != "":
			b.WriteString(" " + errorStyle.Render("✗") + " " + st.name + " " + dimStyle.Render(truncateStr(r.Error, 60)))
		default:
			b.WriteString(" " + okStyle.Render("✓") + " " + st.name + " " +
				dimStyle.Render(fmt.Sprintf("%d tutorials · %s", len(r.Tutorials), r.EstimatedLearningTime)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderStatusBar(m.done, len(m.topics), m.failed, m.width, m.finished))
	b.WriteString("\n")
	return b.String()
}

// RunEnrichment shows live progress while run enriches topics and returns
// its results. If the user quits early the context passed to run is
// cancelled and context.Canceled is returned.
func RunEnrichment(ctx context.Context, topics []string, run RunFunc, opts ...tea.ProgramOption) ([]enrich.Topic, error) {
	m := newProgress(ctx, topics, run)
	defer m.cancel()

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("running progress view: %w", err)
	}
	fm := final.(*Progress)
	if fm.cancelled {
		return fm.results, context.Canceled
	}
	return fm.results, nil
}
