package main

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
)

var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#06B6D4")
	colorSuccess   = lipgloss.Color("#10B981")
	colorError     = lipgloss.Color("#EF4444")
	colorMuted     = lipgloss.Color("#6B7280")
	colorHighlight = lipgloss.Color("#F048FF")
	colorText      = lipgloss.Color("#F9FAFB")
	colorTextDim   = lipgloss.Color("#9CA3AF")

	dimStyle       = lipgloss.NewStyle().Foreground(colorTextDim)
	secondaryStyle = lipgloss.NewStyle().Foreground(colorSecondary)
)

func colorScheme(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           c(lipgloss.Color("#1F2937"), colorText),
		Title:          colorPrimary,
		Description:    colorTextDim,
		Codeblock:      c(lipgloss.Color("#F3F4F6"), lipgloss.Color("#2F2E36")),
		Program:        colorSecondary,
		DimmedArgument: colorMuted,
		Comment:        colorMuted,
		Flag:           colorSuccess,
		FlagDefault:    colorTextDim,
		Command:        colorHighlight,
		QuotedString:   colorSecondary,
		Argument:       c(lipgloss.Color("#1F2937"), colorText),
		Help:           colorTextDim,
		Dash:           colorMuted,
		ErrorHeader:    [2]color.Color{colorText, colorError},
		ErrorDetails:   colorError,
	}
}
