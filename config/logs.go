package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/orandin/lumberjackrus"
	log "github.com/sirupsen/logrus"
)

// ParseLogLevel maps LOG_LEVEL onto a logrus level, defaulting to info.
func ParseLogLevel(level string) log.Level {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// InitLog configures the standard logrus logger. When LOG_FILE is set a
// rotating JSON file sink is attached alongside the console output.
func InitLog(cfg *Config) error {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	log.SetLevel(ParseLogLevel(cfg.LogLevel))

	if cfg.LogFile == "" {
		return nil
	}

	maxSizeMB := int(datasize.ByteSize(cfg.LogFileMaxSize).MBytes())
	if maxSizeMB < 1 {
		maxSizeMB = 1
	}
	hook, err := lumberjackrus.NewHook(
		&lumberjackrus.LogFile{
			Filename:   cfg.LogFile,
			MaxSize:    maxSizeMB,
			MaxBackups: 1,
			MaxAge:     7,
			Compress:   false,
			LocalTime:  true,
		},
		log.DebugLevel,
		&log.JSONFormatter{},
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not open log file %s: %w", cfg.LogFile, err)
	}
	log.AddHook(hook)
	return nil
}
