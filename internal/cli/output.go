package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/config"
	"github.com/tOgg1/tribe/internal/render"
)

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// outputWidth is the terminal width of out, or 0 (no wrapping) when out is
// not a terminal.
func outputWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func newRenderer(cfg *config.Config, out io.Writer) *render.Renderer {
	return render.New(render.ThemeByName(cfg.TUI.Theme), render.Options{
		Width:          outputWidth(out),
		SelfID:         cfg.TUI.SelfID,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
		Location:       time.Local,
	})
}

func writeLines(out io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(out, strings.Join(lines, "\n")+"\n")
	return err
}

// writeTable prints a borderless, left-aligned table.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	if len(headers) == 0 && len(rows) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// formatLine is the one-line form used by watch: "15:04 Name: text".
func formatLine(msg chat.Message, dir chat.Lookup, loc *time.Location) string {
	text := strings.Join(strings.Fields(msg.Text), " ")
	if msg.Edited() {
		text += " (edited)"
	}
	return fmt.Sprintf("%s %s: %s", msg.SentAt.In(loc).Format("15:04"), chat.DisplayName(dir, msg.AuthorUUID), text)
}
