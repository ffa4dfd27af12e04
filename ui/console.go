// Package ui renders the session in a terminal and turns typed lines into
// session commands. It only reads snapshots and events; every change goes
// through contract.ISession.
package ui

import (
	"chat-client/contract"
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/infrastructure/search"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const searchLimit = 20

// Searcher is the part of the message index the console needs.
type Searcher interface {
	Search(ctx context.Context, terms string, contact chat.UserID, limit int) ([]search.Hit, error)
}

type Console struct {
	session  contract.ISession
	searcher Searcher
	out      io.Writer
	baseURL  string
	colours  bool
	readFile func(name string) ([]byte, error)

	// owned by the goroutine calling Handle
	names map[chat.UserID]string
	shown map[string]struct{}
}

// NewConsole builds a console. searcher may be nil when search is disabled.
func NewConsole(session contract.ISession, searcher Searcher, out io.Writer, baseURL string, colours bool) *Console {
	return &Console{
		session:  session,
		searcher: searcher,
		out:      out,
		baseURL:  baseURL,
		colours:  colours,
		readFile: os.ReadFile,
		shown:    make(map[string]struct{}),
	}
}

// Execute runs one input line. It reports whether the client should stop.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.session.Send(ctx, line, nil)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit":
		return true, nil
	case "/logout":
		return true, c.session.Logout(ctx)
	case "/who":
		snapshot, err := c.session.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		c.RenderPresence(snapshot)
		return false, nil
	case "/history":
		snapshot, err := c.session.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		c.RenderConversation(snapshot)
		return false, nil
	case "/select":
		if arg == "" {
			return false, fmt.Errorf("%w: usage /select <user id>", errors.ErrUnknownCommand)
		}
		return false, c.session.SelectConversation(ctx, chat.UserID(arg))
	case "/file":
		if arg == "" {
			return false, fmt.Errorf("%w: usage /file <path> [text]", errors.ErrUnknownCommand)
		}
		path, text, _ := strings.Cut(arg, " ")
		data, err := c.readFile(path)
		if err != nil {
			return false, fmt.Errorf("reading %s failed: %w", path, err)
		}
		file := chat.NewOutboundFile(filepath.Base(path), data)
		return false, c.session.Send(ctx, strings.TrimSpace(text), &file)
	case "/search":
		return false, c.search(ctx, arg)
	default:
		return false, fmt.Errorf("%w: %s", errors.ErrUnknownCommand, name)
	}
}

// Watch prints events until ctx ends or events is closed.
func (c *Console) Watch(ctx context.Context, events <-chan event.DomainEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Handle(evt)
		}
	}
}

// Handle prints one event. Messages are printed once per id, so a snapshot
// fills in whatever was dropped before it reached the console.
func (c *Console) Handle(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.SessionUpdated:
		c.names = displayNames(e.Snapshot)
		for _, msg := range e.Snapshot.Messages {
			c.show(msg)
		}
	case event.ConnectionStateChanged:
		line := "connection " + e.State.String()
		if e.Err != nil {
			line += ": " + e.Err.Error()
		}
		c.println(c.paint(stateStyle(e.State), line))
	case event.MessageAppended:
		c.show(e.Message)
	case event.ConversationReplaced:
		for _, msg := range e.Messages {
			c.shown[msg.ID] = struct{}{}
		}
		c.println(c.paint(color.New(color.FgGray), fmt.Sprintf("conversation with %s loaded, %d messages", nameOf(c.names, e.Contact), len(e.Messages))))
	case event.PresenceUpdated:
		names := lo.Values(e.Online)
		c.println(c.paint(color.New(color.FgCyan), fmt.Sprintf("online: %d %s", len(names), strings.Join(sorted(names), ", "))))
	case event.FetchFailed:
		c.println(c.paint(color.New(color.FgYellow), fmt.Sprintf("could not load %s: %v", e.Resource, e.Err)))
	case event.LogoutFailed:
		c.println(c.paint(color.New(color.FgYellow), fmt.Sprintf("server logout failed: %v", e.Err)))
	case event.SessionClosed:
		clear(c.shown)
		c.println(c.paint(color.New(color.FgMagenta), "logged out"))
	}
}

func (c *Console) show(msg chat.Message) {
	if _, ok := c.shown[msg.ID]; ok {
		return
	}
	c.shown[msg.ID] = struct{}{}
	c.println(c.formatMessage(msg, c.names))
}

// RenderPresence prints online contacts first, then offline ones.
func (c *Console) RenderPresence(snapshot chat.Snapshot) {
	table := c.table([]string{"Status", "ID", "Name"})
	for _, id := range sorted(lo.Keys(snapshot.Online)) {
		table.Append([]string{c.paint(color.New(color.FgGreen), "online"), string(id), snapshot.Online[id]})
	}
	for _, contact := range snapshot.Offline {
		table.Append([]string{c.paint(color.New(color.FgGray), "offline"), string(contact.ID), contact.DisplayName})
	}
	table.Render()
}

func (c *Console) RenderConversation(snapshot chat.Snapshot) {
	if snapshot.Selected == "" {
		c.println("no conversation selected, use /select <user id>")
		return
	}
	names := displayNames(snapshot)
	c.println(c.paint(color.New(color.OpBold), "conversation with "+nameOf(names, snapshot.Selected)))
	for _, msg := range snapshot.Messages {
		c.println(c.formatMessage(msg, names))
	}
}

func (c *Console) search(ctx context.Context, terms string) error {
	if c.searcher == nil {
		return errors.ErrSearchDisabled
	}
	if terms == "" {
		return fmt.Errorf("%w: usage /search <terms>", errors.ErrUnknownCommand)
	}
	hits, err := c.searcher.Search(ctx, terms, "", searchLimit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		c.println("no match")
		return nil
	}
	table := c.table([]string{"Contact", "Sender", "Text", "Score"})
	for _, hit := range hits {
		table.Append([]string{string(hit.Contact), string(hit.Sender), hit.Text, fmt.Sprintf("%.2f", hit.Score)})
	}
	table.Render()
	return nil
}

func (c *Console) formatMessage(msg chat.Message, names map[chat.UserID]string) string {
	body := msg.Text
	if msg.File != nil {
		attachment := "[file] " + msg.File.Locator(c.baseURL)
		body = strings.TrimSpace(body + " " + attachment)
	}
	sender := c.paint(color.New(color.FgBlue, color.OpBold), nameOf(names, msg.Sender))
	line := fmt.Sprintf("%s %s: %s", msg.ReceivedAt.Local().Format("15:04"), sender, body)
	if msg.Provenance == chat.ProvenanceLocal {
		line += c.paint(color.New(color.FgGray), " (sent)")
	}
	return line
}

func (c *Console) table(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (c *Console) paint(style color.Style, text string) string {
	if !c.colours {
		return text
	}
	return style.Render(text)
}

func (c *Console) println(line string) {
	_, _ = fmt.Fprintln(c.out, line)
}

func stateStyle(state chat.ConnectionState) color.Style {
	switch state {
	case chat.Connected:
		return color.New(color.FgGreen)
	case chat.Connecting:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func displayNames(snapshot chat.Snapshot) map[chat.UserID]string {
	names := make(map[chat.UserID]string, len(snapshot.Online)+len(snapshot.Offline)+1)
	names[snapshot.Self.ID] = snapshot.Self.Username
	for _, contact := range snapshot.Offline {
		names[contact.ID] = contact.DisplayName
	}
	for id, name := range snapshot.Online {
		names[id] = name
	}
	return names
}

func nameOf(names map[chat.UserID]string, id chat.UserID) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return string(id)
}

func sorted[T ~string](values []T) []T {
	out := append([]T(nil), values...)
	slices.Sort(out)
	return out
}
