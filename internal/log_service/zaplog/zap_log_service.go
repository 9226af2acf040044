package zaplog

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AnishMulay/fscheck/internal/log_service"
)

// ZapLogService adapts a zap logger to the LogService interface.
type ZapLogService struct {
	nodeID string
	logger *zap.Logger
}

// NewConsoleLogService logs human readable lines to stderr at or above minLevel.
func NewConsoleLogService(nodeID string, minLevel string) *ZapLogService {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapLevel(minLevel),
	)
	return NewZapLogService(nodeID, zap.New(core))
}

// NewNopLogService discards every event.
func NewNopLogService() *ZapLogService {
	return NewZapLogService("", zap.NewNop())
}

func NewZapLogService(nodeID string, logger *zap.Logger) *ZapLogService {
	if nodeID != "" {
		logger = logger.With(zap.String("node", nodeID))
	}
	return &ZapLogService{nodeID: nodeID, logger: logger}
}

func (zs *ZapLogService) Sync() error {
	return zs.logger.Sync()
}

func zapLevel(level string) zapcore.Level {
	switch log_service.GetLevelValue(level) {
	case log_service.DebugLevelValue:
		return zapcore.DebugLevel
	case log_service.WarnLevelValue:
		return zapcore.WarnLevel
	case log_service.ErrorLevelValue:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fields(event log_service.LogEvent) []zap.Field {
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	if !event.Timestamp.IsZero() {
		out = append(out, zap.Time("eventTime", event.Timestamp))
	}
	for _, k := range keys {
		out = append(out, zap.Any(k, event.Metadata[k]))
	}
	return out
}

func (zs *ZapLogService) Debug(event log_service.LogEvent) {
	zs.logger.Debug(event.Message, fields(event)...)
}

func (zs *ZapLogService) Info(event log_service.LogEvent) {
	zs.logger.Info(event.Message, fields(event)...)
}

func (zs *ZapLogService) Warn(event log_service.LogEvent) {
	zs.logger.Warn(event.Message, fields(event)...)
}

func (zs *ZapLogService) Error(event log_service.LogEvent) {
	zs.logger.Error(event.Message, fields(event)...)
}

var _ log_service.LogService = (*ZapLogService)(nil)
