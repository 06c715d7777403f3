package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo zap wrapper shared by the whole service
type LogInfo struct {
	log *zap.Logger
	// debug 開關，/debug 可在執行中切換
	level zap.AtomicLevel
}

// Log 全域 logger，Initialize 之前是 nop
var Log = newNop()

func newNop() *LogInfo {
	return &LogInfo{log: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.InfoLevel)}
}

// Initialize stdout + 當日檔案 log_<date>.log
func Initialize(serviceName, logDir string) *LogInfo {
	if logDir == "" {
		logDir = "./log"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(fmt.Sprintf("create log dir [%s]: %v", logDir, err))
	}

	l := &LogInfo{level: zap.NewAtomicLevelAt(zap.InfoLevel)}
	file := openFile(filepath.Join(logDir, fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))))
	stdout := zapcore.AddSync(os.Stdout)
	console := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	cores := []zapcore.Core{
		// info / error 用 JSON，檔案也留一份
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.NewMultiWriteSyncer(stdout, file),
			zap.LevelEnablerFunc(func(lv zapcore.Level) bool {
				return lv >= zap.InfoLevel && lv != zap.WarnLevel
			}),
		),
		zapcore.NewCore(console, zapcore.NewMultiWriteSyncer(stdout, file), zap.LevelEnablerFunc(func(lv zapcore.Level) bool {
			return lv == zap.WarnLevel
		})),
		zapcore.NewCore(console, stdout, zap.LevelEnablerFunc(func(lv zapcore.Level) bool {
			return lv == zap.DebugLevel && l.level.Enabled(zap.DebugLevel)
		})),
	}

	l.log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))
	return l
}

// SetNewNop 測試時停用輸出
func SetNewNop() {
	Log = newNop()
}

func openFile(path string) zapcore.WriteSyncer {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("open log file [%s]: %v", path, err))
	}
	return zapcore.AddSync(file)
}

// IsDebug report debug mode
func (l *LogInfo) IsDebug() bool {
	return l.level.Level() == zap.DebugLevel
}

// SetDebugMode set the log debug mode
func (l *LogInfo) SetDebugMode(status bool) {
	if status {
		l.level.SetLevel(zap.DebugLevel)
		return
	}
	l.level.SetLevel(zap.InfoLevel)
}

// Info 输出 INFO 级别日志
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Error 输出 ERROR 级别日志
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Debug 输出 DEBUG 级别日志
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn 输出 WARN 级别日志
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Sync flush buffered entries
func (l *LogInfo) Sync() {
	if err := l.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Fatal 記錄後結束程式
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	l.Sync()
	os.Exit(1)
}
