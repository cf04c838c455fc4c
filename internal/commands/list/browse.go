package list

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imghost/internal/client"
	"imghost/pkg/api"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type pageMsg struct {
	res *api.ListResponse
	err error
}

// browser pages through one folder in a table. Fetches run as commands and
// come back as pageMsg.
type browser struct {
	ctx    context.Context
	c      *client.Client
	folder string
	limit  int

	table     table.Model
	images    []api.Image
	page      int
	cursor    string
	truncated bool
	loading   bool
	status    string
	err       error
}

func newBrowser(ctx context.Context, c *client.Client, flags Flags) browser {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 36},
			{Title: "Size", Width: 10},
			{Title: "Uploaded", Width: 19},
			{Title: "Folder", Width: 20},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return browser{
		ctx:     ctx,
		c:       c,
		folder:  flags.Folder,
		limit:   flags.Limit,
		table:   t,
		cursor:  flags.Cursor,
		loading: true,
	}
}

func (m browser) fetch() tea.Cmd {
	ctx, c, folder, cursor, limit := m.ctx, m.c, m.folder, m.cursor, m.limit
	return func() tea.Msg {
		res, err := c.ListImages(ctx, folder, cursor, limit)
		return pageMsg{res: res, err: err}
	}
}

func (m browser) Init() tea.Cmd {
	return m.fetch()
}

func (m browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "n":
			if m.loading || !m.truncated {
				return m, nil
			}
			m.loading = true
			m.status = "loading..."
			return m, m.fetch()
		case "enter":
			if i := m.table.Cursor(); i >= 0 && i < len(m.images) {
				m.status = m.images[i].URL
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil
	case pageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.setPage(msg.res)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *browser) setPage(res *api.ListResponse) {
	m.page++
	m.images = res.Images
	m.truncated = res.Truncated && res.Cursor != nil
	if m.truncated {
		m.cursor = *res.Cursor
	}

	rows := make([]table.Row, 0, len(res.Images))
	for _, img := range res.Images {
		rows = append(rows, table.Row{
			img.Name,
			img.SizeFormatted,
			img.Uploaded.Local().Format(time.DateTime),
			img.Folder,
		})
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
	m.status = fmt.Sprintf("page %d, %d images", m.page, len(rows))
}

func (m browser) View() string {
	var b strings.Builder
	folder := m.folder
	if folder == "" {
		folder = "/"
	}
	b.WriteString(titleStyle.Render("imghost: "+folder) + "\n\n")
	b.WriteString(m.table.View() + "\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	help := "↑/↓ move • enter show URL • q quit"
	if m.truncated {
		help = "n next page • " + help
	}
	b.WriteString(statusStyle.Render(m.status) + "\n")
	b.WriteString(statusStyle.Render(help) + "\n")
	return b.String()
}

// Browse runs the interactive table until the user quits.
func Browse(ctx context.Context, c *client.Client, flags Flags, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(newBrowser(ctx, c, flags),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(browser); ok && m.err != nil {
		return m.err
	}
	return nil
}
