package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
)

// kratosLogger 把 kratos 的 key/value 日志转发到 logrus
type kratosLogger struct {
	entry *logrus.Entry
}

var _ log.Logger = (*kratosLogger)(nil)

// NewKratosLogger 让 HTTP 服务与流水线共用同一个日志输出
func NewKratosLogger(entry *logrus.Entry) log.Logger {
	if entry == nil {
		entry = logrus.NewEntry(Log)
	}
	return &kratosLogger{entry: entry}
}

func (l *kratosLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := logrus.Fields{}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}

	e := l.entry.WithFields(fields)
	switch level {
	case log.LevelDebug:
		e.Debug(msg)
	case log.LevelWarn:
		e.Warn(msg)
	case log.LevelError, log.LevelFatal:
		e.Error(msg)
	default:
		e.Info(msg)
	}
	return nil
}
