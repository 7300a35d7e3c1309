package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ErrObj is attached to ERROR entries.
type ErrObj struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// Entry is one structured log line.
type Entry struct {
	Timestamp  string         `json:"timestamp"`             // RFC3339Nano, UTC
	Level      string         `json:"level"`                 // DEBUG | INFO | WARN | ERROR
	Service    string         `json:"service"`               // tracker | api
	Action     string         `json:"action"`                // event name, e.g. tracking_started
	Message    string         `json:"message"`               // human-readable
	Hostname   string         `json:"hostname"`              // container/host
	RequestID  string         `json:"request_id,omitempty"`  // correlation id
	DeliveryID string         `json:"delivery_id,omitempty"` // active delivery, when applicable
	Error      *ErrObj        `json:"error,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
}

type Logger struct {
	service  string
	minLevel Level
	hostname string
	pretty   bool

	outWriter io.Writer
	errWriter io.Writer
	mu        sync.Mutex

	files []io.Closer
}

// NewLogger writes INFO+ to stdout and ERROR to stderr. LOG_LEVEL and LOG_PRETTY are honoured.
func NewLogger(service string) *Logger {
	h, _ := os.Hostname()
	return &Logger{
		service:   service,
		minLevel:  ParseLevel(os.Getenv("LOG_LEVEL")),
		hostname:  h,
		pretty:    strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
		outWriter: os.Stdout,
		errWriter: os.Stderr,
	}
}

// NewLoggerWithWriter sends every level to w. Used by tests and tools.
func NewLoggerWithWriter(service, minLevel string, w io.Writer) *Logger {
	h, _ := os.Hostname()
	return &Logger{
		service:   service,
		minLevel:  ParseLevel(minLevel),
		hostname:  h,
		outWriter: w,
		errWriter: w,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return NewLoggerWithWriter("nop", "ERROR", io.Discard)
}

// NewLoggerWithOptions additionally duplicates output into fileDir/info.log and fileDir/error.log.
func NewLoggerWithOptions(service, minLevel, fileDir string) (*Logger, error) {
	l := NewLogger(service)
	l.minLevel = ParseLevel(minLevel)
	if fileDir == "" {
		return l, nil
	}

	if err := os.MkdirAll(fileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	infoF, err := os.OpenFile(filepath.Join(fileDir, "info.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open info log: %w", err)
	}
	errF, err := os.OpenFile(filepath.Join(fileDir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		_ = infoF.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}

	l.outWriter = io.MultiWriter(os.Stdout, infoF)
	l.errWriter = io.MultiWriter(os.Stderr, infoF, errF)
	l.files = []io.Closer{infoF, errF}
	return l, nil
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = nil
}

func (l *Logger) Debug(e Entry) { l.log(LevelDebug, e, nil) }
func (l *Logger) Info(e Entry)  { l.log(LevelInfo, e, nil) }
func (l *Logger) Warn(e Entry)  { l.log(LevelWarn, e, nil) }
func (l *Logger) Error(e Entry) { l.log(LevelError, e, nil) }

func (l *Logger) Fatal(e Entry) {
	if e.Error == nil {
		e.Error = &ErrObj{Msg: e.Message}
	}
	if e.Error.Stack == "" {
		e.Error.Stack = string(debug.Stack())
	}
	l.log(LevelError, e, nil)
	os.Exit(1)
}

// WithFields returns a logger that merges base into Additional of every entry.
func (l *Logger) WithFields(base map[string]any) *ContextLogger {
	return &ContextLogger{parent: l, base: base}
}

// WithContext attaches request_id and delivery_id.
func (l *Logger) WithContext(requestID, deliveryID string) *ContextLogger {
	base := map[string]any{}
	if requestID != "" {
		base["request_id"] = requestID
	}
	if deliveryID != "" {
		base["delivery_id"] = deliveryID
	}
	return &ContextLogger{parent: l, base: base}
}

type ContextLogger struct {
	parent *Logger
	base   map[string]any
}

func (c *ContextLogger) Debug(e Entry) { c.parent.log(LevelDebug, e, c.base) }
func (c *ContextLogger) Info(e Entry)  { c.parent.log(LevelInfo, e, c.base) }
func (c *ContextLogger) Warn(e Entry)  { c.parent.log(LevelWarn, e, c.base) }
func (c *ContextLogger) Error(e Entry) { c.parent.log(LevelError, e, c.base) }

var reserved = map[string]struct{}{
	"timestamp": {}, "level": {}, "service": {}, "action": {}, "message": {},
	"hostname": {}, "request_id": {}, "delivery_id": {},
}

func (l *Logger) log(level Level, e Entry, base map[string]any) {
	if level < l.minLevel {
		return
	}

	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	e.Level = level.String()
	if e.Service == "" {
		e.Service = l.service
	}
	if e.Hostname == "" {
		e.Hostname = l.hostname
	}
	if e.RequestID == "" {
		e.RequestID, _ = base["request_id"].(string)
	}
	if e.DeliveryID == "" {
		e.DeliveryID, _ = base["delivery_id"].(string)
	}

	if e.Additional == nil {
		e.Additional = make(map[string]any, len(base)+1)
	}
	for k, v := range base {
		if _, skip := reserved[k]; skip {
			continue
		}
		e.Additional[k] = v
	}
	if _, ok := e.Additional["caller"]; !ok {
		if pc, file, line, ok := runtime.Caller(2); ok {
			name := "unknown"
			if fn := runtime.FuncForPC(pc); fn != nil {
				name = fn.Name()
			}
			e.Additional["caller"] = fmt.Sprintf("%s:%d (%s)", filepath.Base(file), line, name)
		}
	}

	var (
		b   []byte
		err error
	)
	if l.pretty {
		b, err = json.MarshalIndent(e, "", "  ")
	} else {
		b, err = json.Marshal(e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		fmt.Fprintf(l.errWriter, `{"timestamp":"%s","level":"ERROR","service":"%s","message":"failed to marshal log: %v"}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano), l.service, err)
		return
	}

	w := l.outWriter
	if level == LevelError {
		w = l.errWriter
	}
	_, _ = w.Write(append(b, '\n'))
}
