package utils

import (
	"fmt"
	"log"
	"time"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"
)

// Logger prefixes every line with a component tag so that output from
// services, stores and workers can be told apart in a shared stream.
type Logger struct {
	component string
}

func NewLogger(component string) Logger {
	return Logger{component: component}
}

func (l Logger) Info(message string, args ...interface{}) {
	LogInfo(l.component, message, args...)
}

func (l Logger) Success(message string, args ...interface{}) {
	LogSuccess(l.component, message, args...)
}

func (l Logger) Warning(message string, args ...interface{}) {
	LogWarning(l.component, message, args...)
}

func (l Logger) Debug(message string, args ...interface{}) {
	LogDebug(l.component, message, args...)
}

func (l Logger) Error(message string, err error) {
	LogError(l.component, message, err)
}

func format(message string, args []interface{}) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func emit(level, levelColor, component, message string) {
	log.Printf("%s[%s]%s %s[%s]%s %s",
		levelColor, level, ColorReset,
		ColorCyan, component, ColorReset,
		message)
}

func LogInfo(component, message string, args ...interface{}) {
	emit("INFO", ColorBlue, component, format(message, args))
}

func LogSuccess(component, message string, args ...interface{}) {
	emit("SUCCESS", ColorGreen, component, format(message, args))
}

func LogWarning(component, message string, args ...interface{}) {
	emit("WARNING", ColorYellow, component, format(message, args))
}

func LogDebug(component, message string, args ...interface{}) {
	emit("DEBUG", ColorPurple, component, format(message, args))
}

func LogError(component, message string, err error) {
	if err == nil {
		emit("ERROR", ColorRed, component, message)
		return
	}
	emit("ERROR", ColorRed, component, fmt.Sprintf("%s: %s%v%s", message, ColorRed, err, ColorReset))
}

func LogRequest(method, path, remoteAddr string) {
	log.Printf("%s[REQUEST]%s %s%s%s %s | Remote: %s%s%s",
		ColorCyan, ColorReset,
		ColorWhite, method, ColorReset,
		path,
		ColorYellow, remoteAddr, ColorReset)
}

func LogResponse(path string, statusCode int, duration time.Duration) {
	color := ColorGreen
	switch {
	case statusCode >= 500:
		color = ColorRed
	case statusCode >= 400:
		color = ColorYellow
	}

	log.Printf("%s[RESPONSE]%s %s | Status: %s%d%s | Duration: %s%v%s",
		ColorGray, ColorReset,
		path,
		color, statusCode, ColorReset,
		ColorWhite, duration, ColorReset)
}

func LogDB(operation, detail string, args ...interface{}) {
	log.Printf("%s[DB]%s %s[%s]%s %s",
		ColorGray, ColorReset,
		ColorWhite, operation, ColorReset,
		format(detail, args))
}
