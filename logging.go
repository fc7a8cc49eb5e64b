package openr

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("openr")

func init() {
	format := logging.MustStringFormatter(`%{color}%{time:15:04:05.000} ▶ %{level:.4s} %{shortfile}%{color:reset} %{message}`)
	backend := logging.NewLogBackend(os.Stdout, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, format)

	logging.SetBackend(backendFormatter)
}

// Logger returns a named github.com/op/go-logging logger sharing this
// package's backend/formatter, for collaborator packages (storage,
// server, historian) that want the same log texture without
// each configuring their own backend.
func Logger(name string) *logging.Logger {
	return logging.MustGetLogger(name)
}

// SetLoggingLevel adjusts the package-wide log level. Valid values are the
// levels understood by github.com/op/go-logging (debug, info, notice,
// warning, error, critical), case-insensitive. An unrecognized value is
// ignored and the previous level is kept.
func SetLoggingLevel(level string) {
	parsedLevel, err := logging.LogLevel(level)

	if err != nil {
		return
	}

	logging.SetLevel(parsedLevel, "openr")
}
