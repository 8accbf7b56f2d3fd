package logger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// textFormatter renders "LEVEL: message key=value ..." lines, matching the
// original blade agent's ERROR:/WARNING:/INFO: stderr convention (spec §6).
type textFormatter struct{}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer

	level := "INFO"
	switch e.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		level = "DEBUG"
	case logrus.WarnLevel:
		level = "WARNING"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		level = "ERROR"
	}

	fmt.Fprintf(&buf, "%s: %s", level, e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, e.Data[k])
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
