package tss

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NotPresentSentinel is printed by tss when it has no stored credentials.
const NotPresentSentinel = "Secret Server credentials not present."

const utf8BOM = "\ufeff"

// ResponseKind tags the shape of an "all fields" response.
type ResponseKind int

const (
	KindError ResponseKind = iota
	KindRecord
	KindNotAuthenticated
)

func (k ResponseKind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindNotAuthenticated:
		return "not_authenticated"
	default:
		return "error"
	}
}

// Record maps a secret's field slugs to their values.
type Record map[string]string

// Response is a classified "secret -ad" answer. Exactly one of Record and
// Message is meaningful, selected by Kind.
type Response struct {
	Kind    ResponseKind
	Record  Record // KindRecord
	Message string // KindError, KindNotAuthenticated
}

// ParseResponse classifies raw client output and decodes records.
// The error is non-nil only for output that starts like a JSON object but
// does not decode; it wraps ErrMalformedResponse.
func ParseResponse(raw string) (Response, error) {
	text := strings.TrimPrefix(raw, utf8BOM)

	switch {
	case strings.HasPrefix(text, NotPresentSentinel):
		return Response{Kind: KindNotAuthenticated, Message: strings.TrimSpace(text)}, nil
	case strings.HasPrefix(text, "{"):
		rec, err := decodeRecord(text)
		if err != nil {
			return Response{Kind: KindError, Message: strings.TrimSpace(text)}, err
		}
		return Response{Kind: KindRecord, Record: rec}, nil
	default:
		return Response{Kind: KindError, Message: strings.TrimSpace(text)}, nil
	}
}

// decodeRecord flattens a JSON object into string values.
// Strings are kept verbatim, numbers and booleans are formatted, null is
// dropped and nested values are re-encoded as compact JSON.
func decodeRecord(text string) (Record, error) {
	dec := json.NewDecoder(strings.NewReader(text))

	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after record", ErrMalformedResponse)
	}

	rec := make(Record, len(obj))
	for k, raw := range obj {
		v, ok, err := flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, k, err)
		}
		if ok {
			rec[k] = v
		}
	}
	return rec, nil
}

func flatten(raw json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", false, err
		}
		return buf.String(), true, nil
	case 't', 'f':
		b, err := strconv.ParseBool(string(trimmed))
		if err != nil {
			return "", false, err
		}
		return strconv.FormatBool(b), true, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", false, err
		}
		return n.String(), true, nil
	}
}
