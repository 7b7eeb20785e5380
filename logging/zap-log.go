package logging

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/spf13/viper"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type WriteSyncer struct {
	io.Writer
}

func (ws WriteSyncer) Sync() error {
	return nil
}

// GetWriteSyncer returns a size-rotated log file.
func GetWriteSyncer(logName string) zapcore.WriteSyncer {
	var ioWriter = &lumberjack.Logger{
		Filename:   logName,
		MaxSize:    20, // MB
		MaxBackups: 5,  // number of backups
		MaxAge:     28, // days
		LocalTime:  true,
		Compress:   false, // disabled by default
	}
	var sw = WriteSyncer{
		ioWriter,
	}
	return sw
}

// SetupLogger builds the process logger from the LOG_LEVEL setting. An empty
// fileName disables the rotated file output.
func SetupLogger(fileName string) *zap.Logger {
	return SetupLoggerTo(fileName, zapcore.Lock(os.Stdout))
}

// SetupLoggerTo is SetupLogger with non-error console output sent to console.
// Commands that print results on stdout pass stderr here.
func SetupLoggerTo(fileName string, console zapcore.WriteSyncer) *zap.Logger {
	if viper.GetString(LOG_LEVEL) == LOG_LEVEL_ELK {
		return setupLoggerELK(fileName, console)
	}

	// Errors go to stderr, everything else to console, and both to the
	// rotated JSON file.
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= minLevel()
	})

	logFile := zapcore.AddSync(GetWriteSyncer(fileName))
	consoleDebugging := console
	consoleErrors := zapcore.Lock(os.Stderr)

	var config zap.Config
	if strings.EqualFold(viper.GetString(LOG_LEVEL), LOG_LEVEL_PROD) {
		config = zap.NewProductionConfig()
		config.EncoderConfig = zap.NewProductionEncoderConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	configConsole := config
	configConsole.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoder := zapcore.NewJSONEncoder(config.EncoderConfig)
	consoleEncoder := zapcore.NewConsoleEncoder(configConsole.EncoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, consoleErrors, highPriority),
		zapcore.NewCore(consoleEncoder, consoleDebugging, lowPriority),
	}
	if fileName != "" {
		cores = append(cores,
			zapcore.NewCore(fileEncoder, logFile, highPriority),
			zapcore.NewCore(fileEncoder, logFile, lowPriority),
		)
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func SetupLoggerELK(fileName string) *zap.Logger {
	return setupLoggerELK(fileName, zapcore.Lock(os.Stdout))
}

func setupLoggerELK(fileName string, console zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := ecszap.EncoderConfig{
		// EncodeName:     customNameEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   ecszap.FullCallerEncoder,
	}
	out := console
	if fileName != "" {
		out = zapcore.NewMultiWriteSyncer(out, GetWriteSyncer(fileName))
	}
	core := ecszap.NewCore(encoderConfig, out, zap.DebugLevel)
	return zap.New(core, zap.AddCaller())
}

// minLevel is debug unless LOG_LEVEL asks for production output.
func minLevel() zapcore.Level {
	if strings.EqualFold(viper.GetString(LOG_LEVEL), LOG_LEVEL_PROD) {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
