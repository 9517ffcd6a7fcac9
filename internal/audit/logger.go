package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Actions recorded by the device authorization endpoint.
const (
	ActionDeviceCodeIssued   = "device_code.issued"
	ActionDeviceCodeRejected = "device_code.rejected"
	ActionDeviceCodeFailed   = "device_code.failed"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	Client    string    `json:"client,omitempty"`
	UserCode  string    `json:"user_code,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

var (
	mu          sync.RWMutex
	auditLogger = zerolog.New(os.Stdout)
	service     = "deviceauth"
)

// SetOutput redirects audit events. io.Discard disables them.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	auditLogger = zerolog.New(w)
}

// SetService sets the service name stamped on every event.
func SetService(name string) {
	mu.Lock()
	defer mu.Unlock()

	service = name
}

// Log records an audit event. Timestamp and Service are filled in when empty.
func Log(event Event) {
	mu.RLock()
	logger := auditLogger
	if event.Service == "" {
		event.Service = service
	}
	mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	entry, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal audit event to JSON")
		logger.Log().
			Str("service", event.Service).
			Str("action", event.Action).
			Str("client", event.Client).
			Bool("success", event.Success).
			Msg("Audit Log (fallback)")

		return
	}

	logger.Log().RawJSON("audit_event", entry).Msg("")
}
