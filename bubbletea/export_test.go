package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// StatusLine exports statusLine for testing.
func StatusLine(m Model) string {
	return m.statusLine()
}

// ForCurrentRun tags msg as produced by the model's current submission.
func ForCurrentRun(m Model, msg tea.Msg) tea.Msg {
	return runMsg{run: m.run, msg: msg}
}

// ClearBanner returns the message that clears the current banner.
func ClearBanner(m Model) tea.Msg {
	return clearBannerMsg{seq: m.bannerSeq}
}
