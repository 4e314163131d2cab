package operations

import (
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingWriter lets a lumberjack.Logger back a grip stream sender.
type rotatingWriter struct {
	*lumberjack.Logger
}

func (w rotatingWriter) WriteString(str string) (int, error) {
	if !strings.HasSuffix(str, "\n") {
		str += "\n"
	}

	return w.Write([]byte(str))
}

// makeSender returns the sender described by the config: the native
// logger when no file is set, otherwise a size-rotated log file.
func makeSender(name string, conf LogConfig) (send.Sender, error) {
	threshold := level.FromString(conf.Level)
	if !threshold.IsValid() {
		return nil, errors.Errorf("'%s' is not a valid log level", conf.Level)
	}

	if conf.File == "" {
		sender := send.MakeNative()
		sender.SetName(name)
		if err := sender.SetLevel(send.LevelInfo{Default: level.Info, Threshold: threshold}); err != nil {
			return nil, errors.Wrap(err, "problem setting log level")
		}
		return sender, nil
	}

	sender, err := send.NewStreamLogger(name, rotatingWriter{&lumberjack.Logger{
		Filename:   conf.File,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}}, send.LevelInfo{Default: level.Info, Threshold: threshold})

	return sender, errors.Wrapf(err, "problem creating log file sender for '%s'", conf.File)
}

// setupLogging replaces the global grip sender.
func setupLogging(name string, conf LogConfig) error {
	sender, err := makeSender(name, conf)
	if err != nil {
		return err
	}

	grip.SetName(name)
	return errors.WithStack(grip.SetSender(sender))
}
