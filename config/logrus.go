package config

import (
	"os"

	"github.com/homerly/rental_backend/appctx"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.ErrorLevel)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logg.SetLevel(lvl)
	}
	logg.SetOutput(os.Stdout)
	logg.AddHook(CorrelationHook{})
}

// CorrelationHook tags entries logged WithContext with the request's
// correlation id.
type CorrelationHook struct{}

func (CorrelationHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (CorrelationHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}
	if id, ok := appctx.GetString(entry.Context, appctx.ContextKeyCorrelationId); ok && id != "" {
		entry.Data["correlation_id"] = id
	}
	return nil
}

// LogError writes the one error shape every package uses. Pass
// logger.WithContext(ctx) to carry the correlation id.
func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
