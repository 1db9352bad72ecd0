package config

import (
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:15:04:05.000} [%{module}] [%{shortfunc}] [%{level}] %{message}`,
)

var fileLogFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} [%{module}] [%{shortfunc}] [%{level}] %{message}`,
)

// SetupLogging installs the process-wide backends: stdout (or out, when
// non-nil) always, plus a rotated file when file is set. It returns the file
// writer so callers can close it on shutdown.
func SetupLogging(level logging.Level, file string, out io.Writer) io.Closer {
	if out == nil {
		out = os.Stdout
	}
	backendStdout := logging.NewBackendFormatter(logging.NewLogBackend(out, "", 0), stdoutLogFormat)

	var closer io.Closer = nopCloser{}
	backends := []logging.Backend{backendStdout}
	if file != "" {
		w := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		backends = append(backends, logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), fileLogFormat))
		closer = w
	}

	leveled := logging.SetBackend(backends...)
	leveled.SetLevel(level, "")
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
