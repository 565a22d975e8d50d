package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitechniques/llclient/internal/discovery"
)

// Printer writes styled, non-interactive output such as discovery results
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer writing to w, or os.Stdout when w is nil
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	width, _ := GetTerminalSize()
	return &Printer{out: w, width: width}
}

func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintTitle prints a bordered title with an optional subtitle
func (p *Printer) PrintTitle(title, subtitle string) {
	content := TitleStyle.Render(strings.ToUpper(title))
	if subtitle != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, SubtitleStyle.Render(subtitle))
	}
	p.Println(BoxStyle(p.width).Render(content))
}

// PrintServers prints discovered servers, one block per server
func (p *Printer) PrintServers(servers []*discovery.Server) {
	if len(servers) == 0 {
		p.Println(StatusStyle.Render("No servers found"))
		return
	}

	for _, srv := range servers {
		p.Println(SubscribedStyle.Render(" " + MarkerOn + " " + srv.Instance))
		p.PrintKeyValues(map[string]string{
			"Address":  srv.Addr(),
			"Hostname": srv.Hostname,
		})
		if len(srv.Metadata) > 0 {
			p.PrintKeyValues(srv.Metadata)
		}
		p.Println("")
	}
}

// PrintKeyValues prints aligned key/value lines sorted by key
func (p *Printer) PrintKeyValues(pairs map[string]string) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p.Println(KeyStyle.Render("   "+k+":") + " " + ValueStyle.Render(pairs[k]))
	}
}
