package dashboard

import (
	"context"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Options — настройки панели.
type Options struct {
	Context  context.Context
	Fetcher  Fetcher
	PollTick time.Duration
}

// Model — корневое состояние bubbletea-программы.
type Model struct {
	ctx      context.Context
	fetcher  Fetcher
	pollTick time.Duration

	spinner  spinner.Model
	width    int
	loading  bool
	stats    *domain.Stats
	updated  time.Time
	lastErr  error
	notice   string
	quitting bool
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	poll := opts.PollTick
	if poll <= 0 {
		poll = 2 * time.Second
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.accent))
	return Model{ctx: ctx, fetcher: opts.Fetcher, pollTick: poll, spinner: sp, loading: true}
}

type (
	tickMsg  time.Time
	statsMsg struct {
		stats domain.Stats
		at    time.Time
	}
	errMsg    struct{ err error }
	noticeMsg string
)

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		st, err := m.fetcher.FetchStats(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statsMsg{stats: st, at: time.Now()}
	}
}

// toggleCmd — переключает сигнал связи на противоположный текущему.
func (m Model) toggleCmd(online bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		if err := m.fetcher.SetOnline(ctx, online); err != nil {
			return errMsg{err}
		}
		if online {
			return noticeMsg("signalled online")
		}
		return noticeMsg("signalled offline")
	}
}

func (m Model) syncCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		r, err := m.fetcher.SyncNow(ctx)
		if err != nil {
			return errMsg{err}
		}
		return noticeMsg(formatReport(r))
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd(), tickCmd(m.pollTick))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.loading = true
		return m, tea.Batch(m.fetchCmd(), tickCmd(m.pollTick))

	case statsMsg:
		st := msg.stats
		m.stats = &st
		m.updated = msg.at
		m.loading = false
		m.lastErr = nil
		return m, nil

	case errMsg:
		m.lastErr = msg.err
		m.loading = false
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, m.fetchCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.loading = true
		return m, m.fetchCmd()
	case "o":
		online := true
		if m.stats != nil {
			online = !m.stats.Connection.Online
		}
		return m, m.toggleCmd(online)
	case "s":
		return m, m.syncCmd()
	}
	return m, nil
}

// Run — запускает панель в альтернативном экране до выхода пользователя.
func Run(opts Options) error {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	return err
}
