package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.Mutex
	debugLog *log.Logger
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	verbose  bool
)

// Init sets up leveled logging to stdout/stderr and a rotating file under logDir.
func Init(logDir string, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	verbose = debug

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "fincoach.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	outWriter := io.MultiWriter(os.Stdout, rotating)
	errWriter := io.MultiWriter(os.Stderr, rotating)

	flags := log.Ldate | log.Ltime
	debugLog = log.New(outWriter, "DEBUG: ", flags)
	infoLog = log.New(outWriter, "INFO: ", flags)
	warnLog = log.New(outWriter, "WARNING: ", flags)
	errorLog = log.New(errWriter, "ERROR: ", flags)

	// Route Go's default logger through the same writer.
	log.SetOutput(outWriter)
}

func callerInfo() string {
	pc, _, _, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	return runtime.FuncForPC(pc).Name()
}

func logf(l *log.Logger, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		log.Printf(format, v...)
		return
	}
	l.Printf("[%s] %s", callerInfo(), fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if !verbose {
		return
	}
	logf(debugLog, format, v...)
}

func Info(format string, v ...interface{}) {
	logf(infoLog, format, v...)
}

func Warn(format string, v ...interface{}) {
	logf(warnLog, format, v...)
}

func Error(format string, v ...interface{}) {
	logf(errorLog, format, v...)
}
