package logger

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tradeflow/conf"
)

// 基于zap的全局日志，文件切割使用lumberjack
// 未调用Init时退化为控制台输出，方便单测和本地联调

var lg *zap.SugaredLogger

func init() {
	core := zapcore.NewCore(consoleEncoder(""), zapcore.Lock(os.Stdout), zapcore.DebugLevel)
	lg = zap.New(core).Sugar()
}

func Init(cfg conf.LogConfig) {
	level := parseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.FileName != "" {
		w := &lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(cfg.TimeFormat), zapcore.AddSync(w), level))
	}
	if cfg.Console || cfg.FileName == "" {
		cores = append(cores, zapcore.NewCore(consoleEncoder(cfg.TimeFormat), zapcore.Lock(os.Stdout), level))
	}

	lg = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig(timeFormat string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

func jsonEncoder(timeFormat string) zapcore.Encoder {
	return zapcore.NewJSONEncoder(encoderConfig(timeFormat))
}

func consoleEncoder(timeFormat string) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(encoderConfig(timeFormat))
}

// Pair 构造一个结构化字段
func Pair(key string, value interface{}) interface{} {
	return zap.Any(key, value)
}

func Sync() {
	_ = lg.Sync()
}

func Debug(msg string, pairs ...interface{})  { lg.Debugw(msg, pairs...) }
func Info(msg string, pairs ...interface{})   { lg.Infow(msg, pairs...) }
func Warn(msg string, pairs ...interface{})   { lg.Warnw(msg, pairs...) }
func Error(msg string, pairs ...interface{})  { lg.Errorw(msg, pairs...) }

func Debugf(format string, args ...interface{}) { lg.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { lg.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { lg.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { lg.Errorf(format, args...) }

func Fatal(args ...interface{})                 { lg.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { lg.Fatalf(format, args...) }
