package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	infoTxtColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnTxtColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorTxtColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugTxtColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

func levelStyle(icon string, color lipgloss.AdaptiveColor) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(icon).
		Bold(true).
		Padding(0, 1).
		Foreground(color)
}

// logStyles colours levels and the keys the sync engine logs most.
func logStyles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Levels[log.ErrorLevel] = levelStyle("❌", errorTxtColor)
	styles.Levels[log.InfoLevel] = levelStyle("ℹ️", infoTxtColor)
	styles.Levels[log.WarnLevel] = levelStyle("⚠️", warnTxtColor)
	styles.Levels[log.DebugLevel] = levelStyle("🐛", debugTxtColor)

	keyColors := map[string]lipgloss.AdaptiveColor{
		"error":     errorTxtColor,
		"entity":    infoTxtColor,
		"consumer":  infoTxtColor,
		"reason":    warnTxtColor,
		"service":   debugTxtColor,
		"component": debugTxtColor,
	}
	for key, color := range keyColors {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	return styles
}

func setupLogger(cfg *config.Log) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	formatter := log.TextFormatter
	if f, ok := map[string]log.Formatter{
		"json":   log.JSONFormatter,
		"text":   log.TextFormatter,
		"logfmt": log.LogfmtFormatter,
	}[cfg.Format]; ok {
		formatter = f
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(logStyles())

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
