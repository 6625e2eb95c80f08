// Package gelf ships zap JSON log entries to a GELF UDP input.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Syslog severities used by GELF.
var levels = map[string]int{
	"debug":  7,
	"info":   6,
	"warn":   4,
	"error":  3,
	"dpanic": 2,
	"panic":  2,
	"fatal":  2,
}

// Writer sends GELF messages over UDP and implements zapcore.WriteSyncer.
// Each Write must carry one JSON-encoded zap entry.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service + "-server"
	}

	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write converts one zap entry to GELF and sends it. Send failures are
// dropped; logging never fails because the collector is down.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := w.encode(p)
	if err != nil {
		return len(p), nil
	}
	_, _ = w.conn.Write(payload)
	return len(p), nil
}

func (w *Writer) Sync() error { return nil }

func (w *Writer) Close() error { return w.conn.Close() }

func (w *Writer) encode(p []byte) ([]byte, error) {
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		// not JSON, send the raw line
		entry = map[string]any{"msg": strings.TrimRight(string(p), "\n")}
	}

	msg := map[string]any{
		"version":   "1.1",
		"host":      w.hostname,
		"level":     6,
		"timestamp": float64(time.Now().UnixNano()) / 1e9,
		"_service":  w.service,
	}
	for k, v := range entry {
		switch k {
		case "msg":
			msg["short_message"] = v
		case "level":
			if s, ok := v.(string); ok {
				if lvl, ok := levels[s]; ok {
					msg["level"] = lvl
				}
			}
		case "ts":
			if ts, ok := v.(float64); ok {
				msg["timestamp"] = ts
			}
		case "stacktrace":
			msg["full_message"] = v
		case "id":
			// _id is reserved by GELF
			msg["_field_id"] = v
		default:
			msg["_"+k] = v
		}
	}
	if _, ok := msg["short_message"]; !ok {
		msg["short_message"] = "-"
	}
	return json.Marshal(msg)
}
