package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
)

// Options selects where logs go. The zero value logs to ./logs/app.log at debug level.
type Options struct {
	File   string
	Level  string
	Stdout bool
}

// Setup initializes Logrus to write via a rotating file and returns that
// writer so request logs can share it.
func Setup(opts Options) io.Writer {
	if opts.File == "" {
		opts.File = "./logs/app.log"
	}

	// 1) Lumberjack for file rotation
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 7,  // keep up to 7 old files
		MaxAge:     7,  // days
		Compress:   true,
	}

	var out io.Writer = rotator
	if opts.Stdout {
		out = io.MultiWriter(rotator, os.Stdout)
	}

	// 2) Configure Logrus to write to that file
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	return out
}

// Component returns an entry tagged with the emitting subsystem.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
