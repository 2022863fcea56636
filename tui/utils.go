package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailsight/mail"
	"github.com/bassamadnan/mailsight/wordcloud"
)

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// formatSnippetListItem renders one inbox message as a 4-line box.
// contentWidth is the width of the text inside the box lines.
func formatSnippetListItem(idx int, s mail.Snippet, isSelected bool, contentWidth int) string {
	var boxCharStyle, snippetStyle, secondaryTextStyle lipgloss.Style
	if isSelected {
		boxCharStyle = SelectedBoxCharStyle
		snippetStyle = SelectedSnippetStyle
		secondaryTextStyle = SelectedSecondaryTextStyle
	} else {
		boxCharStyle = NormalBoxCharStyle
		snippetStyle = NormalSnippetStyle
		secondaryTextStyle = NormalSecondaryTextStyle
	}

	text := strings.Join(strings.Fields(s.Text), " ")
	if text == "" {
		text = "(empty message)"
	}
	textLine := padRight(truncate(text, contentWidth), contentWidth)
	metaLine := padRight(truncate(fmt.Sprintf("#%d  %s", idx+1, s.ID), contentWidth), contentWidth)

	horizontalBar := strings.Repeat(BoxHorizontal, contentWidth+2)
	lines := []string{
		boxCharStyle.Render(BoxTopLeft + horizontalBar + BoxTopRight),
		fmt.Sprintf("%s %s %s", boxCharStyle.Render(BoxVertical), snippetStyle.Render(textLine), boxCharStyle.Render(BoxVertical)),
		fmt.Sprintf("%s %s %s", boxCharStyle.Render(BoxVertical), secondaryTextStyle.Render(metaLine), boxCharStyle.Render(BoxVertical)),
		boxCharStyle.Render(BoxBottomLeft + horizontalBar + BoxBottomRight),
	}
	return SnippetListItemStyle.Render(strings.Join(lines, "\n"))
}

// frequencyChart draws the top words as horizontal bars scaled to the most
// frequent one.
func frequencyChart(words []wordcloud.WordCount, limit, width int) string {
	if len(words) == 0 {
		return ""
	}
	if len(words) > limit {
		words = words[:limit]
	}
	labelWidth := 0
	for _, w := range words {
		labelWidth = max(labelWidth, utf8.RuneCountInString(w.Word))
	}
	labelWidth = min(labelWidth, 16)
	countWidth := len(fmt.Sprint(words[0].Count))
	barWidth := max(width-labelWidth-countWidth-2, 1)

	maxCount := words[0].Count
	var b strings.Builder
	for i, w := range words {
		n := max(w.Count*barWidth/maxCount, 1)
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ChartWordStyle.Render(padRight(truncate(w.Word, labelWidth), labelWidth)))
		b.WriteString(" ")
		b.WriteString(ChartBarStyle.Render(strings.Repeat(BarBlock, n)))
		b.WriteString(fmt.Sprintf(" %d", w.Count))
	}
	return b.String()
}
