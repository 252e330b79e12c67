package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/natefinch/lumberjack"

	"map_shortcuts/pkg/config"
)

const bannerWidth = 60

// newLogger creates a logger with timestamp formatting.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// newRunLogger logs to w and, when cfg.File is set, to a rotated file too.
// The returned func closes the file.
func newRunLogger(w io.Writer, cfg config.Log) (*log.Logger, func() error, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if cfg.File == "" {
		return newLogger(w, level), func() error { return nil }, nil
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	}
	return newLogger(io.MultiWriter(w, lj), level), lj.Close, nil
}

// section logs a banner separating the phases of a run.
func section(l *log.Logger, title string) {
	rule := strings.Repeat("=", bannerWidth)
	l.Info(rule)
	l.Info(title)
	l.Info(rule)
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) done(msg string, keyvals ...interface{}) {
	keyvals = append(keyvals, "took", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}
