package worker

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jwalitptl/scheduling-api/pkg/logger"
)

var _ asynq.Logger = (*AsynqLogger)(nil)

// AsynqLogger routes asynq's internal logging through the service logger.
type AsynqLogger struct {
	log *logger.Logger
}

func NewAsynqLogger(log *logger.Logger) *AsynqLogger {
	return &AsynqLogger{log: log}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }

func (l *AsynqLogger) Error(args ...interface{}) {
	l.log.Error(errors.New(fmt.Sprint(args...)), "asynq error")
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal(errors.New(fmt.Sprint(args...)), "asynq fatal")
}
