// Package log writes one JSON line per security or audit event.
package log

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type ctxKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type entry struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	ReqID  string         `json:"req_id,omitempty"`
	IP     string         `json:"ip,omitempty"`
	Method string         `json:"method,omitempty"`
	Path   string         `json:"path,omitempty"`
	User   string         `json:"user,omitempty"`
	Action string         `json:"action,omitempty"`
	Err    string         `json:"err,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// ClientIP is filled in by the router so events carry the same address the
// rate limiter uses.
var ClientIP = func(r *http.Request) string { return r.RemoteAddr }

func write(level string, r *http.Request, user, action string, err error, fields map[string]any) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339), Level: level, User: user, Action: action, Fields: fields}
	if r != nil {
		e.IP = ClientIP(r)
		e.Method = r.Method
		e.Path = r.URL.Path
		e.ReqID = RequestID(r.Context())
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, _ := json.Marshal(e)
	log.Println(string(b))
}

func Info(r *http.Request, user, action string, fields map[string]any) {
	write("info", r, user, action, nil, fields)
}

func Audit(r *http.Request, user, action string, fields map[string]any) {
	write("audit", r, user, action, nil, fields)
}

func Security(r *http.Request, user, action string, fields map[string]any) {
	write("warn", r, user, action, nil, fields)
}

func Error(r *http.Request, user, action string, err error, fields map[string]any) {
	write("error", r, user, action, err, fields)
}
