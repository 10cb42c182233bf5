package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenses/internal/core"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser reads a form-encoded or JSON object body once.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the trimmed, control-character-free value for key.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns the value for key exactly as sent.
func (p *RequestBodyParser) Raw(key string) string {
	if p.IsJSON() {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims whitespace and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseDraft maps the expense form onto a draft; a non-empty id means edit.
// Title and category keep their surrounding spaces, so "Food " and "Food"
// stay distinct categories.
func parseDraft(p *RequestBodyParser) core.Draft {
	return core.Draft{
		EditingID: core.ExpenseID(p.Get("id")),
		Title:     stripControl(p.Raw("title")),
		Amount:    p.Get("amount"),
		Category:  stripControl(p.Raw("category")),
	}
}
