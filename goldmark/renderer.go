package goldmark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const defaultWidth = 80

// Renderer turns markdown into styled text. It is safe for concurrent use.
type Renderer struct {
	parser parser.Parser

	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	code      lipgloss.Style
}

// New creates a Renderer styled with theme.
func New(theme chatstream.Theme) *Renderer {
	return &Renderer{
		parser:    goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser(),
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		heading:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
		code:      lipgloss.NewStyle().Foreground(ansiColor(theme.BotMsg)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// Render returns source as styled text wrapped to width.
func (r *Renderer) Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	src := []byte(source)
	doc := r.parser.Parse(text.NewReader(src))

	var buf bytes.Buffer
	r.blocks(doc, src, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

// blocks renders each child of node, separated by blank lines.
func (r *Renderer) blocks(node ast.Node, src []byte, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c, src, width, buf)
		if c.NextSibling() != nil {
			buf.WriteString("\n")
		}
	}
}

func (r *Renderer) block(node ast.Node, src []byte, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		writeLine(buf, wrap(r.inline(n, src), width))

	case *ast.Heading:
		writeLine(buf, wrap(r.heading.Render(r.inline(n, src)), width))

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(src)); lang != "" {
			writeLine(buf, r.muted.Render(lang))
		}
		r.codeLines(n, src, buf)

	case *ast.CodeBlock:
		r.codeLines(n, src, buf)

	case *ast.Blockquote:
		inner := width - 2
		if inner < 10 {
			inner = 10
		}
		var quoted bytes.Buffer
		r.blocks(n, src, inner, &quoted)
		bar := r.muted.Render("│") + " "
		for _, line := range strings.Split(strings.TrimRight(quoted.String(), "\n"), "\n") {
			writeLine(buf, bar+line)
		}

	case *ast.List:
		r.list(n, src, width, buf, 0)

	case *ast.ThematicBreak:
		writeLine(buf, r.muted.Render(strings.Repeat("─", min(width, 40))))

	case *extast.Table:
		r.table(n, src, buf)

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}

	default:
		r.blocks(node, src, width, buf)
	}
}

func (r *Renderer) codeLines(n ast.Node, src []byte, buf *bytes.Buffer) {
	gutter := r.muted.Render("│") + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		writeLine(buf, gutter+r.code.Render(strings.TrimRight(string(seg.Value(src)), "\n")))
	}
}

func (r *Renderer) list(n *ast.List, src []byte, width int, buf *bytes.Buffer, depth int) {
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		indent := strings.Repeat("  ", depth)

		var content strings.Builder
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				content.WriteString(r.inline(in, src))
			case *ast.List:
				if content.Len() > 0 {
					r.listItem(buf, indent+marker, content.String(), width)
					content.Reset()
				}
				r.list(in, src, width, buf, depth+1)
				marker = strings.Repeat(" ", len(marker))
			default:
				var nested bytes.Buffer
				r.block(ic, src, width, &nested)
				content.WriteString(strings.TrimRight(nested.String(), "\n"))
			}
		}
		if content.Len() > 0 {
			r.listItem(buf, indent+marker, content.String(), width)
		}
	}
}

// listItem writes content after prefix, indenting wrapped lines to align
// with the first.
func (r *Renderer) listItem(buf *bytes.Buffer, prefix, content string, width int) {
	w := width - len(prefix)
	if w < 10 {
		w = 10
	}
	pad := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrap(content, w), "\n") {
		if i == 0 {
			writeLine(buf, prefix+line)
		} else {
			writeLine(buf, pad+line)
		}
	}
}

// table renders a GFM table with columns padded to their widest cell.
// Cells are not wrapped.
func (r *Renderer) table(n *extast.Table, src []byte, buf *bytes.Buffer) {
	var rows [][]string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, r.inline(cell, src))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	cols := len(n.Alignments)
	widths := make([]int, cols)
	for _, row := range rows {
		for i, cell := range row {
			if i < cols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	sep := r.muted.Render(" │ ")
	for ri, row := range rows {
		parts := make([]string, cols)
		for i := range cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if ri == 0 {
				cell = r.bold.Render(cell)
			}
			parts[i] = align(cell, widths[i], n.Alignments[i])
		}
		writeLine(buf, strings.TrimRight(strings.Join(parts, sep), " "))
		if ri == 0 {
			rules := make([]string, cols)
			for i, w := range widths {
				rules[i] = strings.Repeat("─", w)
			}
			writeLine(buf, r.muted.Render(strings.Join(rules, "─┼─")))
		}
	}
}

func align(cell string, width int, a extast.Alignment) string {
	gap := width - lipgloss.Width(cell)
	if gap <= 0 {
		return cell
	}
	switch a {
	case extast.AlignRight:
		return strings.Repeat(" ", gap) + cell
	case extast.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

// inline returns the styled inline content of node.
func (r *Renderer) inline(node ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.inlineNode(c, src, &buf)
	}
	return buf.String()
}

func (r *Renderer) inlineNode(node ast.Node, src []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(src))
		switch {
		case n.HardLineBreak():
			buf.WriteByte('\n')
		case n.SoftLineBreak():
			buf.WriteByte(' ')
		}

	case *ast.String:
		buf.Write(n.Value)

	case *ast.Emphasis:
		inner := r.inline(n, src)
		if n.Level == 1 {
			buf.WriteString(r.italic.Render(inner))
		} else {
			buf.WriteString(r.bold.Render(inner))
		}

	case *extast.Strikethrough:
		buf.WriteString(r.strike.Render(r.inline(n, src)))

	case *extast.TaskCheckBox:
		if n.IsChecked {
			buf.WriteString("[x] ")
		} else {
			buf.WriteString("[ ] ")
		}

	case *ast.CodeSpan:
		buf.WriteString(r.code.Render(r.inline(n, src)))

	case *ast.Link:
		buf.WriteString(r.underline.Render(r.inline(n, src)))
		buf.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.Image:
		buf.WriteString(r.underline.Render(r.inline(n, src)))
		buf.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.AutoLink:
		buf.WriteString(r.underline.Render(string(n.URL(src))))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(src))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.inlineNode(c, src, buf)
		}
	}
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func writeLine(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteString("\n")
}
