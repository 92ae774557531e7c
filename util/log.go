package util

import (
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLog parses and sets log-level input and, when logPath is not empty or
// "console", redirects output to a rotated log file.
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	if logPath != "" && logPath != "console" {
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.Writer(lumberjackLogger))
	}

	log.SetFormatter(&LineFormatter{})
	log.SetLevel(level)
	return nil
}

// LineFormatter renders one line per entry in the fixed update-log format
// shared by the manager and the updater helper:
//
//	02-Jan-2006 15:04:05.000> message
type LineFormatter struct{}

func (f *LineFormatter) Format(entry *log.Entry) ([]byte, error) {
	stamp := entry.Time.Format("02-Jan-2006 15:04:05.000")
	return []byte(fmt.Sprintf("%s> %s\n", stamp, entry.Message)), nil
}
