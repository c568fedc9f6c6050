package mgmtapi

import (
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

const maxHistory = 1000

const scrubbed = "****"

// scrubbedFields are replaced in recorded payloads. The request sent to the
// server is never altered.
var scrubbedFields = []string{"password", "new-password", "api-key"}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// CallRecord describes one API call as issued, with secrets scrubbed.
type CallRecord struct {
	RequestID  string
	Command    string
	URL        string
	Payload    types.Document
	Headers    map[string]string
	StatusCode int
	Response   types.Document
	Time       time.Time
}

type auditRequest struct {
	URL     string            `json:"url"`
	Payload types.Document    `json:"payload"`
	Headers map[string]string `json:"headers"`
}

type auditResponse struct {
	Data   types.Document `json:"data"`
	Status int            `json:"status"`
}

type auditRecord struct {
	Request  auditRequest  `json:"request"`
	Response auditResponse `json:"response"`
}

func scrub(doc types.Document) types.Document {
	for _, field := range scrubbedFields {
		if !doc.Has(field) {
			continue
		}
		if out, err := doc.With(field, scrubbed); err == nil {
			doc = out
		}
	}
	return doc
}

// auditLog appends comma-joined records to the debug file. Writes from one
// client are serialized; separate processes must not share a file.
type auditLog struct {
	mu   sync.Mutex
	path string
}

func newAuditLog(path string) *auditLog {
	return &auditLog{path: path}
}

func (a *auditLog) enabled() bool {
	return a != nil && a.path != ""
}

func (a *auditLog) append(rec CallRecord) error {
	data, err := jsonAPI.Marshal(auditRecord{
		Request: auditRequest{
			URL:     rec.URL,
			Payload: rec.Payload,
			Headers: rec.Headers,
		},
		Response: auditResponse{
			Data:   rec.Response,
			Status: rec.StatusCode,
		},
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		data = append([]byte{','}, data...)
	}
	_, err = f.Write(data)
	return err
}

type callHistory struct {
	mu      sync.Mutex
	limit   int
	records []CallRecord
}

func newCallHistory(limit int) *callHistory {
	return &callHistory{limit: limit}
}

func (h *callHistory) add(rec CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if over := len(h.records) - h.limit; over > 0 {
		h.records = append(h.records[:0:0], h.records[over:]...)
	}
}

func (h *callHistory) snapshot() []CallRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CallRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (c *Client) record(rec CallRecord, resp *Response) {
	rec.StatusCode = resp.StatusCode
	rec.Response = resp.Data
	c.history.add(rec)
	if !c.audit.enabled() {
		return
	}
	if err := c.audit.append(rec); err != nil {
		c.logger.Warn().Err(err).Str("path", c.audit.path).Msg("failed to write debug file")
	}
}

// CallHistory returns the most recent calls issued by the client, oldest first.
func (c *Client) CallHistory() []CallRecord {
	return c.history.snapshot()
}
