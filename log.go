package udefrag

import (
	"github.com/dsoprea/go-logging"

	"github.com/udefrag/core/internal/dbglog"
)

var (
	logger = log.NewLogger("udefrag")
)

// SetLogLevel maps UD_DBGPRINT_LEVEL onto the shared debug channel.
func SetLogLevel(level dbglog.Level) {
	dbglog.SetLevel(level)
}

// SetLogFile points the shared debug channel at path, matching
// UD_LOG_FILE_PATH's "append, fall back to %TMP%\…_Logs\…" behavior. The
// fallback itself is the caller's responsibility (it depends on the host's
// temp directory convention); this only performs the open-or-report step.
func SetLogFile(path string) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	err = dbglog.Open(path)
	log.PanicIf(err)

	return nil
}

func debugPrint(format string, args ...interface{}) {
	dbglog.Printf(dbglog.Normal, format, args...)
}

func detailedPrint(format string, args ...interface{}) {
	dbglog.Printf(dbglog.Detailed, format, args...)
}
