package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestSecurityEventCarriesRequestContext(t *testing.T) {
	buf := capture(t)
	r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	r = r.WithContext(WithRequestID(r.Context(), "req-1"))
	Security(r, "a@example.com", "login_failed", map[string]any{"attempt": 2})

	var e entry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e); err != nil {
		t.Fatalf("not a JSON line: %q", buf.String())
	}
	if e.Level != "warn" || e.ReqID != "req-1" || e.Path != "/api/v1/auth/login" || e.User != "a@example.com" || e.Action != "login_failed" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Fields["attempt"] != float64(2) {
		t.Fatalf("fields = %v", e.Fields)
	}
}

func TestErrorWithoutRequest(t *testing.T) {
	buf := capture(t)
	Error(nil, "", "session_store", errors.New("redis down"), nil)
	if !strings.Contains(buf.String(), `"err":"redis down"`) || strings.Contains(buf.String(), `"path"`) {
		t.Fatalf("unexpected line %q", buf.String())
	}
}
