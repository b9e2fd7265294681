// Package log builds the process-wide logrus logger from the
// CLI/config-driven logmode. Plugins and the core packages speak the
// pluginapi.Logger interface, which *logrus.Logger already satisfies
// (Debugf/Infof/Warnf/Errorf), so no adapter sits in between.
package log

import (
	"fmt"
	"io"
	"log/syslog"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packetloom/tracecore/internal/config"
)

// New builds a *logrus.Logger from cfg.Mode: stderr/terminal (default),
// file, syslog, disabled/off/none.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	switch normalizeMode(cfg.Mode) {
	case "", "stderr", "terminal":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		// logrus defaults to os.Stderr; nothing further to configure.

	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log mode \"file\" requires file_path")
		}
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})

	case "syslog":
		writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "tracecore")
		if err != nil {
			return nil, fmt.Errorf("connecting to syslog: %w", err)
		}
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		logger.SetOutput(writer)

	case "disabled", "off", "none":
		logger.SetOutput(io.Discard)

	default:
		return nil, fmt.Errorf("unrecognized log mode %q", cfg.Mode)
	}

	return logger, nil
}

func normalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}
