// Package ui holds the terminal styling used by the CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderAccent renders emphasized values such as identifiers and counts.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders a success marker or confirmation line.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders a warning line.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderError renders a failure line.
func RenderError(s string) string { return errorStyle.Render(s) }

// RenderDim renders secondary detail such as timestamps.
func RenderDim(s string) string { return dimStyle.Render(s) }

// RenderHeader renders a table or section heading.
func RenderHeader(s string) string { return headerStyle.Render(s) }
