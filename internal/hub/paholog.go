package hub

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/veksa/envirosim/internal/logging"
)

// pahoLogger routes the paho client's internal logging into slog.
type pahoLogger struct {
	level slog.Level
}

func (l pahoLogger) Println(v ...any) {
	logging.Logger.Log(context.Background(), l.level, fmt.Sprint(v...), "component", "paho")
}

func (l pahoLogger) Printf(format string, v ...any) {
	logging.Logger.Log(context.Background(), l.level, fmt.Sprintf(format, v...), "component", "paho")
}

func init() {
	mqtt.CRITICAL = pahoLogger{level: slog.LevelError}
	mqtt.ERROR = pahoLogger{level: slog.LevelError}
	mqtt.WARN = pahoLogger{level: slog.LevelWarn}
	mqtt.DEBUG = pahoLogger{level: slog.LevelDebug}
}
