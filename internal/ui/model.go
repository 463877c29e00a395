package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"querydeck/internal/api"
	"querydeck/internal/chart"
	"querydeck/internal/clipboard"
	"querydeck/internal/config"
	"querydeck/internal/export"
	"querydeck/internal/session"
	"querydeck/internal/store"
	"querydeck/internal/stream"
	"querydeck/internal/tabular"
)

type paneTab int

const (
	tabSQL paneTab = iota
	tabTable
	tabChart
	tabAnalysis
	tabCount
)

var tabNames = [tabCount]string{"SQL", "Table", "Chart", "Analysis"}

type inputMode int

const (
	modeNormal inputMode = iota
	modeAsk
	modeSearch
	modeFilter
	modeSQL
)

type conversationsMsg struct {
	items []convItem
	err   error
}

type newConversationMsg struct {
	id  string
	err error
}

type historyMsg struct {
	conversationID string
	history        []session.HistoryMessage
	err            error
}

type streamStartedMsg struct {
	conversationID string
	dec            *stream.Decoder
	body           io.ReadCloser
	err            error
}

type streamEventMsg struct {
	ev  stream.Event
	err error
}

type artifactSavedMsg struct {
	err error
}

type execMsg struct {
	messageID int64
	res       api.ExecResult
	err       error
}

type exportMsg struct {
	path string
	err  error
}

type copyMsg struct {
	err error
}

type convItem struct {
	id      string
	title   string
	updated string
}

func (i convItem) Title() string {
	if i.title != "" {
		return shorten(i.title, 34)
	}
	return shorten(i.id, 34)
}

func (i convItem) Description() string {
	if i.updated == "" {
		return shorten(i.id, 34)
	}
	return i.updated
}

func (i convItem) FilterValue() string {
	return strings.ToLower(i.id + " " + i.title)
}

// Model is the top-level terminal UI state: a conversation list on the left
// and the active question's SQL, result table, chart, and analysis on the
// right. All session mutation happens here on the update goroutine; commands
// only do I/O and report back as messages.
type Model struct {
	cfg      config.AppConfig
	client   *api.Client
	store    *store.Store
	exporter *export.Exporter

	sess *session.Session
	view *tabular.View

	list     list.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	tab         paneTab
	mode        inputMode
	focusOnList bool

	streaming    bool
	streamBody   io.ReadCloser
	dec          *stream.Decoder
	cancelStream context.CancelFunc

	width  int
	height int
	status string
	err    error
}

func NewModel(cfg config.AppConfig, client *api.Client, st *store.Store, exp *export.Exporter) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Conversations"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)
	vp.SetContent("Loading conversations...")

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.CharLimit = 2048

	m := Model{
		cfg:      cfg,
		client:   client,
		store:    st,
		exporter: exp,
		sess:     session.New(cfg.Conversation),
		list:     l,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		help:     h,
		keys:     defaultKeys(),

		tab:         tabTable,
		focusOnList: true,
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadConversationsCmd()}
	if m.cfg.Conversation != "" {
		cmds = append(cmds, m.loadHistoryCmd(m.cfg.Conversation))
	}
	return tea.Batch(cmds...)
}

func (m Model) loadConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		remote, err := m.client.Conversations(ctx)
		if err == nil {
			items := make([]convItem, 0, len(remote))
			for _, c := range remote {
				_ = m.store.UpsertConversation(ctx, c.ID, c.Title)
				items = append(items, convItem{id: c.ID, title: c.Title, updated: c.UpdatedAt})
			}
			return conversationsMsg{items: items}
		}

		local, lerr := m.store.Conversations(ctx)
		if lerr != nil {
			return conversationsMsg{err: err}
		}
		items := make([]convItem, 0, len(local))
		for _, c := range local {
			updated := ""
			if c.UpdatedTS > 0 {
				updated = time.Unix(c.UpdatedTS, 0).Format("2006-01-02 15:04")
			}
			items = append(items, convItem{id: c.ID, title: c.Title, updated: updated + " (cached)"})
		}
		return conversationsMsg{items: items}
	}
}

func (m Model) newConversationCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id, err := m.client.CreateConversation(ctx)
		return newConversationMsg{id: id, err: err}
	}
}

// loadHistoryCmd fetches a conversation's messages from the server and mirrors
// them into the local cache; when the server is unreachable it serves the
// cache instead.
func (m Model) loadHistoryCmd(conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msgs, err := m.client.Messages(ctx, conversationID)
		if err == nil {
			_ = m.store.ReplaceMessages(ctx, conversationID, storeMessagesFromAPI(conversationID, msgs))
			for _, msg := range msgs {
				if msg.Artifact == nil {
					continue
				}
				rec, aerr := storeArtifact(session.Artifact{
					MessageID: msg.ID,
					SQL:       msg.Artifact.SQL,
					Columns:   msg.Artifact.Columns,
					Rows:      msg.Artifact.Rows,
					Chart:     chart.FromOption(msg.Artifact.Chart),
					Analysis:  msg.Artifact.Analysis,
				}, conversationID)
				if aerr == nil {
					_ = m.store.SaveArtifact(ctx, rec)
				}
			}
			return historyMsg{conversationID: conversationID, history: historyFromAPI(msgs)}
		}

		cached, lerr := m.store.Messages(ctx, conversationID)
		if lerr != nil || len(cached) == 0 {
			return historyMsg{conversationID: conversationID, err: err}
		}
		arts, _ := m.store.Artifacts(ctx, conversationID)
		return historyMsg{conversationID: conversationID, history: historyFromStore(cached, arts)}
	}
}

func (m Model) askCmd(ctx context.Context, conversationID, question string) tea.Cmd {
	return func() tea.Msg {
		id := conversationID
		if id == "" {
			var err error
			id, err = m.client.CreateConversation(ctx)
			if err != nil {
				return streamStartedMsg{err: err}
			}
		}
		dec, body, err := m.client.Ask(ctx, id, question)
		if err != nil {
			return streamStartedMsg{err: err}
		}
		return streamStartedMsg{conversationID: id, dec: dec, body: body}
	}
}

func readEventCmd(dec *stream.Decoder) tea.Cmd {
	return func() tea.Msg {
		frame, err := dec.Next(context.Background())
		if err != nil {
			return streamEventMsg{err: err}
		}
		return streamEventMsg{ev: stream.ParseEvent(frame)}
	}
}

func (m Model) saveArtifactCmd(a session.Artifact) tea.Cmd {
	conversationID := m.sess.ConversationID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec, err := storeArtifact(a, conversationID)
		if err == nil {
			err = m.store.SaveArtifact(ctx, rec)
		}
		return artifactSavedMsg{err: err}
	}
}

func (m Model) execCmd(messageID int64, sqlText string) tea.Cmd {
	req := api.ExecRequest{
		ConversationID: m.sess.ConversationID,
		MessageID:      messageID,
		SQL:            sqlText,
		WithAnalysis:   true,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		res, err := m.client.ExecuteSQL(ctx, req)
		return execMsg{messageID: messageID, res: res, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	a, ok := m.sess.Artifact(m.sess.ActiveID)
	if !ok {
		return nil
	}
	conversationID := m.sess.ConversationID
	return func() tea.Msg {
		path, err := m.exporter.ExportArtifact(a, conversationID)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) exportXLSXCmd() tea.Cmd {
	if len(m.sess.Columns) == 0 {
		return nil
	}
	cols, rows := m.sess.Columns, m.sess.Rows
	name := fmt.Sprintf("%s-msg%d.xlsx", safeID(m.sess.ConversationID), m.sess.ActiveID)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		data, err := m.client.ExportTable(ctx, cols, rows, name)
		if err != nil {
			return exportMsg{err: err}
		}
		path, err := m.exporter.WriteServerExport(name, data)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copySQLCmd() tea.Cmd {
	sqlText := strings.TrimSpace(m.sess.SQL)
	if sqlText == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyMsg{err: clipboard.Copy(ctx, sqlText)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshPane(false)

	case conversationsMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Conversation list failed"
			break
		}
		m.applyConversations(msg.items)

	case newConversationMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Could not create conversation"
			break
		}
		m.switchConversation(msg.id)
		m.status = "New conversation " + shorten(msg.id, 18)
		m.enterMode(modeAsk)
		cmds = append(cmds, m.loadConversationsCmd())

	case historyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "History load failed"
			break
		}
		if m.sess.ConversationID != msg.conversationID {
			m.sess.SwitchConversation(msg.conversationID)
		}
		m.sess.LoadHistory(msg.history)
		m.rebuildView()
		m.refreshPane(true)

	case streamStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Question failed"
			m.streaming = false
			break
		}
		if m.sess.ConversationID == "" {
			m.sess.ConversationID = msg.conversationID
		}
		m.dec = msg.dec
		m.streamBody = msg.body
		m.streaming = true
		cmds = append(cmds, readEventCmd(m.dec), m.spinner.Tick)

	case streamEventMsg:
		cmds = append(cmds, m.applyStreamEvent(msg)...)

	case execMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "SQL re-run failed"
			break
		}
		a := m.sess.RecordExec(msg.messageID, msg.res.SQL, msg.res.Columns, msg.res.Rows, msg.res.Chart, msg.res.Analysis)
		m.rebuildView()
		m.refreshPane(true)
		m.status = "SQL re-run complete"
		cmds = append(cmds, m.saveArtifactCmd(a))

	case artifactSavedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Cache write failed"
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied SQL to clipboard"
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.streaming {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	return m, tea.Batch(cmds...)
}

// applyStreamEvent folds one decoded event into the session and re-arms the
// next read. Stream order is preserved because exactly one read command is
// outstanding at a time.
func (m *Model) applyStreamEvent(msg streamEventMsg) []tea.Cmd {
	if m.dec == nil {
		// stream was abandoned; drop the stale read
		return nil
	}
	if msg.err != nil {
		m.closeStream()
		if !errors.Is(msg.err, io.EOF) {
			m.err = msg.err
			m.status = "Stream interrupted"
		}
		m.refreshPane(false)
		return nil
	}

	m.sess.Apply(msg.ev)

	var cmds []tea.Cmd
	switch ev := msg.ev.(type) {
	case stream.SQL:
		m.tab = tabSQL
	case stream.Table:
		m.rebuildView()
		m.tab = tabTable
	case stream.Chart:
		m.tab = tabChart
	case stream.Analysis:
		m.tab = tabAnalysis
		if ev.Final {
			if a, ok := m.sess.Artifact(m.sess.ActiveID); ok {
				cmds = append(cmds, m.saveArtifactCmd(a))
			}
		}
	case stream.Done:
		cmds = append(cmds, m.loadConversationsCmd())
	}

	m.refreshPane(false)
	cmds = append(cmds, readEventCmd(m.dec))
	return cmds
}

func (m *Model) closeStream() {
	if m.streamBody != nil {
		_ = m.streamBody.Close()
		m.streamBody = nil
	}
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	m.dec = nil
	m.streaming = false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNormal {
		return m.handleInputKey(msg)
	}

	var cmds []tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeStream()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		m.focusOnList = !m.focusOnList
		return m, nil
	case key.Matches(msg, m.keys.FocusLeft):
		m.focusOnList = true
		return m, nil
	case key.Matches(msg, m.keys.FocusRight):
		m.focusOnList = false
		return m, nil
	case key.Matches(msg, m.keys.NextView):
		m.tab = (m.tab + 1) % tabCount
		m.refreshPane(true)
		return m, nil
	case key.Matches(msg, m.keys.PrevView):
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.refreshPane(true)
		return m, nil
	case key.Matches(msg, m.keys.Ask):
		if m.streaming {
			m.status = "Still streaming; esc to abandon first"
			return m, nil
		}
		m.enterMode(modeAsk)
		return m, nil
	case key.Matches(msg, m.keys.NewConv):
		return m, m.newConversationCmd()
	case key.Matches(msg, m.keys.Esc):
		if m.streaming {
			m.closeStream()
			m.status = "Stream abandoned"
			m.refreshPane(false)
			return m, nil
		}
		if m.view != nil && m.view.Query() != "" {
			m.view.SetQuery("")
			m.refreshPane(false)
		}
		return m, nil
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()
	case key.Matches(msg, m.keys.ExportXLSX):
		return m, m.exportXLSXCmd()
	case key.Matches(msg, m.keys.CopySQL):
		return m, m.copySQLCmd()
	case key.Matches(msg, m.keys.Rerun):
		if m.streaming || m.sess.ActiveID == 0 {
			return m, nil
		}
		m.enterMode(modeSQL)
		m.input.SetValue(m.sess.SQL)
		m.input.CursorEnd()
		return m, nil
	case key.Matches(msg, m.keys.PrevMsg):
		m.stepMessage(-1)
		return m, nil
	case key.Matches(msg, m.keys.NextMsg):
		m.stepMessage(1)
		return m, nil
	}

	if m.focusOnList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
		if key.Matches(msg, m.keys.Open) {
			if id := m.selectedConversationID(); id != "" && id != m.sess.ConversationID {
				cmds = append(cmds, m.loadHistoryCmd(id))
			}
			m.focusOnList = false
		}
		return m, tea.Batch(cmds...)
	}

	if cmd, handled := m.handlePaneKey(msg); handled {
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		m.viewport.LineUp(1)
	case "down", "j":
		m.viewport.LineDown(1)
	case "pgup", "b":
		m.viewport.HalfViewUp()
	case "pgdown", "f":
		if m.tab != tabChart {
			m.viewport.HalfViewDown()
		}
	}
	return m, nil
}

// handlePaneKey dispatches keys whose meaning depends on the visible tab:
// paging and search on the table, configuration edits on the chart.
func (m *Model) handlePaneKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch m.tab {
	case tabTable:
		switch msg.String() {
		case "/":
			m.enterMode(modeSearch)
			if m.view != nil {
				m.input.SetValue(m.view.Query())
				m.input.CursorEnd()
			}
			return nil, true
		case "n", "]":
			if m.view != nil {
				m.view.NextPage()
				m.refreshPane(false)
			}
			return nil, true
		case "p", "[":
			if m.view != nil {
				m.view.PrevPage()
				m.refreshPane(false)
			}
			return nil, true
		}

	case tabChart:
		switch msg.String() {
		case "t":
			m.cycleType()
			return nil, true
		case "g":
			m.cycleAgg()
			return nil, true
		case "x":
			m.cycleField(chart.SlotX)
			return nil, true
		case "y":
			m.cycleField(chart.SlotY)
			return nil, true
		case "s":
			m.cycleField(chart.SlotSeries)
			return nil, true
		case "f":
			if len(m.sess.Profiles) == 0 {
				m.status = "No table to filter"
				return nil, true
			}
			m.enterMode(modeFilter)
			return nil, true
		case "F":
			m.clearFilters()
			return nil, true
		case "0":
			m.sess.Config.Reset()
			m.sess.Config.Reconcile(m.sess.Profiles)
			m.status = "Chart config reset"
			m.refreshPane(false)
			return nil, true
		}
	}
	return nil, false
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveMode()
		return m, nil
	case "enter":
		return m.commitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// table search applies live
	if m.mode == modeSearch && m.view != nil {
		m.view.SetQuery(m.input.Value())
		m.refreshPane(false)
	}
	return m, cmd
}

func (m Model) commitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode := m.mode
	m.leaveMode()

	switch mode {
	case modeAsk:
		if value == "" {
			return m, nil
		}
		m.sess.StartQuestion(value)
		m.streaming = true
		m.tab = tabAnalysis
		m.refreshPane(true)
		ctx, cancel := context.WithCancel(context.Background())
		m.cancelStream = cancel
		return m, tea.Batch(m.askCmd(ctx, m.sess.ConversationID, value), m.spinner.Tick)

	case modeSearch:
		if m.view != nil {
			m.view.SetQuery(value)
			m.refreshPane(false)
		}
		return m, nil

	case modeFilter:
		if value == "" {
			return m, nil
		}
		if err := m.applyFilterInput(value); err != nil {
			m.status = err.Error()
		}
		m.refreshPane(false)
		return m, nil

	case modeSQL:
		if value == "" {
			return m, nil
		}
		m.status = "Re-running SQL..."
		return m, m.execCmd(m.sess.ActiveID, value)
	}
	return m, nil
}

func (m *Model) enterMode(mode inputMode) {
	m.mode = mode
	m.input.SetValue("")
	switch mode {
	case modeAsk:
		m.input.Prompt = "? "
		m.input.Placeholder = "Ask a question about your data..."
	case modeSearch:
		m.input.Prompt = "/ "
		m.input.Placeholder = "Search rows..."
	case modeFilter:
		m.input.Prompt = "filter "
		m.input.Placeholder = "column op value   e.g. sales > 6, region contains east, amount between 5,20"
	case modeSQL:
		m.input.Prompt = "sql "
		m.input.Placeholder = "SELECT ..."
	}
	m.input.Focus()
}

func (m *Model) leaveMode() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) switchConversation(id string) {
	m.closeStream()
	m.sess.SwitchConversation(id)
	m.view = nil
	m.refreshPane(true)
}

func (m *Model) applyConversations(items []convItem) {
	listItems := make([]list.Item, 0, len(items))
	selectIdx := -1
	for i, it := range items {
		listItems = append(listItems, it)
		if it.id == m.sess.ConversationID {
			selectIdx = i
		}
	}
	m.list.SetItems(listItems)
	if selectIdx >= 0 {
		m.list.Select(selectIdx)
	}
}

func (m *Model) selectedConversationID() string {
	item, ok := m.list.SelectedItem().(convItem)
	if !ok {
		return ""
	}
	return item.id
}

// stepMessage re-displays an adjacent stored question without re-running it.
func (m *Model) stepMessage(delta int) {
	ids := m.sess.MessageIDs()
	if len(ids) == 0 {
		return
	}
	cur := -1
	for i, id := range ids {
		if id == m.sess.ActiveID {
			cur = i
			break
		}
	}
	next := cur + delta
	if cur == -1 {
		next = len(ids) - 1
	}
	if next < 0 || next >= len(ids) {
		return
	}
	if m.sess.SelectMessage(ids[next]) {
		m.rebuildView()
		m.refreshPane(true)
		m.status = fmt.Sprintf("Question %d/%d", next+1, len(ids))
	}
}

func (m *Model) rebuildView() {
	if len(m.sess.Columns) == 0 {
		m.view = nil
		return
	}
	m.view = tabular.NewView(m.sess.Columns, m.sess.Rows, m.cfg.PageSize)
}

func (m *Model) cycleType() {
	order := []chart.Type{chart.TypeAuto, chart.TypeBar, chart.TypeLine, chart.TypeArea, chart.TypePie, chart.TypeScatter}
	cur := m.sess.Config.Type
	for i, t := range order {
		if t == cur {
			m.sess.Config.SetType(order[(i+1)%len(order)])
			m.refreshPane(false)
			return
		}
	}
	m.sess.Config.SetType(chart.TypeBar)
	m.refreshPane(false)
}

func (m *Model) cycleAgg() {
	order := []chart.Agg{chart.AggSum, chart.AggAvg, chart.AggMax, chart.AggMin, chart.AggCount}
	cur := m.sess.Config.Agg
	for i, a := range order {
		if a == cur {
			m.sess.Config.SetAggregation(order[(i+1)%len(order)])
			m.refreshPane(false)
			return
		}
	}
	m.sess.Config.SetAggregation(chart.AggSum)
	m.refreshPane(false)
}

// cycleField steps an axis slot through the column list; y and series include
// the empty slot (count mode and single series respectively).
func (m *Model) cycleField(slot chart.FieldSlot) {
	if len(m.sess.Columns) == 0 {
		return
	}
	options := make([]string, 0, len(m.sess.Columns)+1)
	if slot != chart.SlotX {
		options = append(options, "")
	}
	options = append(options, m.sess.Columns...)

	var cur string
	switch slot {
	case chart.SlotX:
		cur = m.sess.Config.XField
	case chart.SlotY:
		cur = m.sess.Config.YField
	case chart.SlotSeries:
		cur = m.sess.Config.SeriesField
	}
	next := options[0]
	for i, o := range options {
		if o == cur {
			next = options[(i+1)%len(options)]
			break
		}
	}
	m.sess.Config.SetField(slot, next)
	m.refreshPane(false)
}

func (m *Model) clearFilters() {
	for _, f := range append([]chart.Filter(nil), m.sess.Config.Filters...) {
		m.sess.Config.RemoveFilter(f.ID)
	}
	m.status = "Filters cleared"
	m.refreshPane(false)
}

// applyFilterInput parses "column op value" and installs it as a filter.
func (m *Model) applyFilterInput(input string) error {
	field, op, value, err := parseFilter(input, m.sess.Profiles)
	if err != nil {
		return err
	}
	f := m.sess.Config.AddFilter(m.sess.Profiles)
	if f == nil {
		return fmt.Errorf("no columns to filter")
	}
	m.sess.Config.UpdateFilter(f.ID, chart.FilterPatch{Field: &field, Op: &op, Value: &value})
	m.status = fmt.Sprintf("Filter: %s %s %s", field, op, value)
	return nil
}

func parseFilter(input string, profiles []tabular.Column) (string, chart.Op, string, error) {
	fields := strings.Fields(input)
	if len(fields) < 3 {
		return "", "", "", fmt.Errorf("expected: column op value")
	}
	name := fields[0]
	var col *tabular.Column
	for i := range profiles {
		if profiles[i].Name == name {
			col = &profiles[i]
			break
		}
	}
	if col == nil {
		return "", "", "", fmt.Errorf("unknown column %q", name)
	}

	op := chart.Op(fields[1])
	valid := false
	for _, o := range chart.OpsFor(col.Type) {
		if o == op {
			valid = true
			break
		}
	}
	if !valid {
		return "", "", "", fmt.Errorf("op %q not valid for %s column %q", op, col.Type, name)
	}
	return name, op, strings.Join(fields[2:], " "), nil
}

// refreshPane re-renders the right pane for the active tab.
func (m *Model) refreshPane(gotoTop bool) {
	if m.width == 0 {
		return
	}
	width := m.viewport.Width
	if width < 20 {
		width = 20
	}

	var content string
	switch m.tab {
	case tabSQL:
		content = m.renderSQLTab()
	case tabTable:
		content = renderTable(m.view, width)
	case tabChart:
		content = renderChart(m.sess.Chart(), m.sess.Config, width)
	case tabAnalysis:
		content = m.renderAnalysisTab(width)
	}

	m.viewport.SetContent(content)
	if gotoTop {
		m.viewport.GotoTop()
	}
}

func (m *Model) renderSQLTab() string {
	sqlText := strings.TrimSpace(m.sess.SQL)
	if sqlText == "" {
		return hintStyle.Render("No SQL yet. Ask a question with 'a'.")
	}
	var b strings.Builder
	if q := m.sess.Question(m.sess.ActiveID); q != "" {
		b.WriteString(headerStyle.Render(q) + "\n\n")
	}
	b.WriteString(sqlText + "\n\n")
	b.WriteString(hintStyle.Render("c copy  r edit & re-run"))
	return b.String()
}

func (m *Model) renderAnalysisTab(width int) string {
	narrative := m.sess.Narrative()
	if m.sess.ErrText != "" {
		narrative = "**Error:** " + m.sess.ErrText
	}
	if strings.TrimSpace(narrative) == "" {
		if m.streaming {
			return hintStyle.Render("Waiting for analysis...")
		}
		return hintStyle.Render("No analysis yet.")
	}

	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(config.DefaultGlamourStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return narrative
	}
	out, err := r.Render(narrative)
	if err != nil {
		return narrative
	}
	return out
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()

	bodyHeight := m.height - 3
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 2
	m.viewport.Height = bodyHeight - 3
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	status := m.statusLine()
	left, right := m.paneWidths()
	bodyHeight := m.height - 3
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	leftPane := panelStyle(m.focusOnList).Width(left).Height(bodyHeight).Render(m.list.View())
	rightContent := m.tabBar() + "\n" + m.viewport.View()
	rightPane := panelStyle(!m.focusOnList).Width(right).Height(bodyHeight).Render(rightContent)
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	bottom := m.help.View(m.keys)
	if m.mode != modeNormal {
		bottom = m.input.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		status,
		body,
		bottom,
	)
}

func (m Model) tabBar() string {
	parts := make([]string, 0, int(tabCount))
	for t := paneTab(0); t < tabCount; t++ {
		name := tabNames[t]
		if t == m.tab {
			parts = append(parts, activeTabStyle.Render(name))
		} else {
			parts = append(parts, inactiveTabStyle.Render(name))
		}
	}
	return strings.Join(parts, dimStyle.Render(" | "))
}

func (m Model) statusLine() string {
	status := "querydeck"
	if m.sess.ConversationID != "" {
		status += "  conv=" + shorten(m.sess.ConversationID, 18)
	}
	if m.sess.ActiveID != 0 {
		status += fmt.Sprintf("  msg=%d", m.sess.ActiveID)
	}
	if m.streaming {
		stage := m.sess.Stage
		if stage == "" {
			stage = "streaming"
		}
		status += "  " + m.spinner.View() + " " + stage
	}
	if m.view != nil && m.view.Query() != "" {
		status += fmt.Sprintf("  [search %d/%d]", m.view.MatchCount(), m.view.TotalRows())
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + shorten(strings.TrimSpace(m.status), 80)
	}
	if m.sess.ErrText != "" {
		status += "  err=" + shorten(m.sess.ErrText, 60)
	} else if m.err != nil {
		status += "  err=" + shorten(m.err.Error(), 60)
	}
	return statusStyle.Render(status)
}

func (m *Model) paneWidths() (int, int) {
	left := m.width / 3
	if left < 30 {
		left = 30
	}
	if left > m.width-40 {
		left = m.width - 40
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}
	return left, right
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func safeID(s string) string {
	if s == "" {
		return "conversation"
	}
	return shorten(s, 24)
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}

type keyMap struct {
	Ask        key.Binding
	NewConv    key.Binding
	Open       key.Binding
	Tab        key.Binding
	FocusLeft  key.Binding
	FocusRight key.Binding
	NextView   key.Binding
	PrevView   key.Binding
	PrevMsg    key.Binding
	NextMsg    key.Binding
	Rerun      key.Binding
	Export     key.Binding
	ExportXLSX key.Binding
	CopySQL    key.Binding
	Esc        key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Ask: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "ask"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "new conversation"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open conversation"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle focus"),
		),
		FocusLeft: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "focus list"),
		),
		FocusRight: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "focus result"),
		),
		NextView: key.NewBinding(
			key.WithKeys("}", "2"),
			key.WithHelp("2/}", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("{", "1"),
			key.WithHelp("1/{", "prev view"),
		),
		PrevMsg: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "prev question"),
		),
		NextMsg: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "next question"),
		),
		Rerun: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "edit & re-run SQL"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export markdown"),
		),
		ExportXLSX: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "export xlsx"),
		),
		CopySQL: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy SQL"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel/clear"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Ask, k.Tab, k.NextView, k.Rerun, k.Export, k.CopySQL, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Ask, k.NewConv, k.Open, k.Tab, k.FocusLeft, k.FocusRight},
		{k.NextView, k.PrevView, k.PrevMsg, k.NextMsg, k.Esc},
		{k.Rerun, k.Export, k.ExportXLSX, k.CopySQL, k.Quit},
	}
}
