package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// getWriteSyncer builds the output for config: a rotating file when Director
// is set, stdout when LogInTerminal is set, both when both are set.
func getWriteSyncer(config Config) (zapcore.WriteSyncer, func() error) {
	var syncers []zapcore.WriteSyncer
	closer := func() error { return nil }

	if config.Director != "" {
		if err := os.MkdirAll(config.Director, 0o755); err == nil {
			file := &lumberjack.Logger{
				Filename:   filepath.Join(config.Director, config.FileName),
				MaxSize:    config.MaxSize,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAge,
				Compress:   config.Compress,
				LocalTime:  true,
			}
			syncers = append(syncers, zapcore.AddSync(file))
			closer = file.Close
		}
	}
	if config.LogInTerminal || len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}
	if len(syncers) == 1 {
		return syncers[0], closer
	}
	return zapcore.NewMultiWriteSyncer(syncers...), closer
}
