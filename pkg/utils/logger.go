package utils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig - настройки логирования
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string // stdout, stderr или путь к файлу
	Development bool
	MaxSizeMB   int // ротация файла (lumberjack)
	MaxBackups  int
	MaxAgeDays  int
}

// Logger - обёртка над zap.Logger с доменными хелперами
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создает logger по конфигурации.
// Ошибка открытия файла не фатальна: вывод переключается на stderr.
func InitLogger(cfg LogConfig) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		if cfg.Development {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, openOutput(cfg), zap.NewAtomicLevelAt(parseLevel(cfg.Level)))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	l := zap.New(core, opts...)
	return &Logger{Logger: l, sugar: l.Sugar()}
}

func openOutput(cfg LogConfig) zapcore.WriteSyncer {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return zapcore.Lock(os.Stderr)
	}
	if info, err := os.Stat(cfg.Output); err == nil && info.Mode()&os.ModeType != 0 {
		// /dev/null и прочие специальные файлы не ротируются
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY, 0)
		if err != nil {
			return zapcore.Lock(os.Stderr)
		}
		return zapcore.Lock(f)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitGlobalLogger создает logger и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger устанавливает глобальный logger
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный logger, создавая его при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{Level: "info", Format: "json"})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// With возвращает дочерний logger с полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{Logger: child, sugar: child.Sugar()}
}

// WithComponent - logger компонента (service, ledger, api...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithOffer - logger для операций над предложением
func (l *Logger) WithOffer(offerID string) *Logger {
	return l.With(OfferID(offerID))
}

// WithEmail - logger для выплаты инвестору
func (l *Logger) WithEmail(email string) *Logger {
	return l.With(Email(email))
}

// WithAddress - logger для операций с адресом
func (l *Logger) WithAddress(address string) *Logger {
	return l.With(Address(address))
}

// Sugar возвращает SugaredLogger
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============ Глобальные функции ============

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { L().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { L().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { L().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { L().sugar.Errorf(format, args...) }

// ============ Конструкторы полей ============

func OfferID(id string) zap.Field           { return zap.String("offer_id", id) }
func OrderID(id string) zap.Field           { return zap.String("order_id", id) }
func IssuanceID(id string) zap.Field        { return zap.String("issuance_id", id) }
func TxID(id string) zap.Field              { return zap.String("tx_id", id) }
func Email(email string) zap.Field          { return zap.String("email", email) }
func Address(address string) zap.Field      { return zap.String("address", address) }
func Amount(v int64) zap.Field              { return zap.Int64("amount", v) }
func Step(step int) zap.Field               { return zap.Int("htlc_step", step) }
func Status(status string) zap.Field        { return zap.String("status", status) }
func Outcome(outcome string) zap.Field      { return zap.String("outcome", outcome) }
func RequestID(id string) zap.Field         { return zap.String("request_id", id) }
func Component(name string) zap.Field       { return zap.String("component", name) }
func String(k, v string) zap.Field          { return zap.String(k, v) }
func Int(k string, v int) zap.Field         { return zap.Int(k, v) }
func Int64(k string, v int64) zap.Field     { return zap.Int64(k, v) }
func Float64(k string, v float64) zap.Field { return zap.Float64(k, v) }
func Bool(k string, v bool) zap.Field       { return zap.Bool(k, v) }
func Err(err error) zap.Field               { return zap.Error(err) }
func Any(k string, v interface{}) zap.Field { return zap.Any(k, v) }

func Latency(d time.Duration) zap.Field {
	return zap.Float64("latency_ms", float64(d.Microseconds())/1000)
}
