package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel представляет уровень логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel переводит LogLevel в уровень zap
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel парсит строку в LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO // по умолчанию INFO
	}
}

// Logger представляет логгер с уровнями поверх zap
type Logger struct {
	level zap.AtomicLevel
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// New создает новый JSON-логгер в stdout с указанным уровнем
func New(level LogLevel) *Logger {
	return newWithOutput(level, []string{"stdout"})
}

func newWithOutput(level LogLevel, outputPaths []string) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.NewProductionConfig()
	config.Level = atom
	config.Encoding = "json"
	config.EncoderConfig = encoderConfig
	config.OutputPaths = outputPaths
	config.ErrorOutputPaths = []string{"stderr"}
	// Журнал доступа пишет одно сообщение на запрос, семплирование его бы прореживало
	config.Sampling = nil

	base, err := config.Build()
	if err != nil {
		base = zap.NewNop()
	}

	return &Logger{level: atom, base: base, sugar: base.Sugar()}
}

// NewWithCore создает логгер поверх произвольного zapcore.Core (используется в тестах)
func NewWithCore(core zapcore.Core, level LogLevel) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	base := zap.New(levelFilteredCore{Core: core, level: atom})
	return &Logger{level: atom, base: base, sugar: base.Sugar()}
}

// levelFilteredCore отсекает записи ниже динамического уровня
type levelFilteredCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c levelFilteredCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c levelFilteredCore) With(fields []zapcore.Field) zapcore.Core {
	return levelFilteredCore{Core: c.Core.With(fields), level: c.level}
}

func (c levelFilteredCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// SetLevel устанавливает уровень логирования
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// GetLevel возвращает текущий уровень логирования
func (l *Logger) GetLevel() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// Zap возвращает структурированный логгер
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Debug выводит отладочное сообщение
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info выводит информационное сообщение
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn выводит предупреждение
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error выводит сообщение об ошибке
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync сбрасывает буферы
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Глобальный логгер
var globalLogger = New(INFO)

// SetGlobal подменяет глобальный логгер
func SetGlobal(l *Logger) {
	globalLogger = l
}

// SetGlobalLevel устанавливает уровень для глобального логгера
func SetGlobalLevel(level LogLevel) {
	globalLogger.SetLevel(level)
}

// GetGlobalLevel возвращает уровень глобального логгера
func GetGlobalLevel() LogLevel {
	return globalLogger.GetLevel()
}

// L возвращает структурированный глобальный логгер для access-логов
func L() *zap.Logger {
	return globalLogger.Zap()
}

// Sync сбрасывает буферы глобального логгера
func Sync() error {
	return globalLogger.Sync()
}

// Глобальные функции для удобства
func Debug(format string, args ...interface{}) {
	globalLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	globalLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	globalLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	globalLogger.Error(format, args...)
}
