package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// WriteValue is the body of a put. It is either a PlainWrite or a
// VersionedWrite.
type WriteValue interface {
	isWriteValue()
}

type PlainWrite struct {
	Data string `json:"data"`
}

func (PlainWrite) isWriteValue() {}

// VersionedWrite carries the operation, the item it applies to and the
// version the client last observed. The store rejects writes against a
// stale version.
type VersionedWrite struct {
	Op      string          `json:"op"`
	Item    string          `json:"item"`
	Version json.RawMessage `json:"version"`
}

func (VersionedWrite) isWriteValue() {}

func NewVersionedWrite(op, item, versionJSON string) (VersionedWrite, error) {
	if !json.Valid([]byte(versionJSON)) {
		return VersionedWrite{}, fmt.Errorf("%w: %q", ErrInvalidVersionJSON, versionJSON)
	}

	var compact bytes.Buffer

	if err := json.Compact(&compact, []byte(versionJSON)); err != nil {
		return VersionedWrite{}, fmt.Errorf("%w: %s", ErrInvalidVersionJSON, err)
	}

	return VersionedWrite{Op: op, Item: item, Version: json.RawMessage(compact.Bytes())}, nil
}

// ParseVersionedWrite decodes a complete {"op","item","version"} object.
// Missing or unknown fields are rejected, so the write is sent as given.
func ParseVersionedWrite(raw string) (VersionedWrite, error) {
	var fields struct {
		Op      *string         `json:"op"`
		Item    *string         `json:"item"`
		Version json.RawMessage `json:"version"`
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&fields); err != nil {
		return VersionedWrite{}, fmt.Errorf("%w: %s", ErrInvalidVersionJSON, err)
	}

	if dec.More() {
		return VersionedWrite{}, fmt.Errorf("%w: trailing data after write", ErrInvalidVersionJSON)
	}

	if fields.Op == nil || fields.Item == nil || fields.Version == nil {
		return VersionedWrite{}, fmt.Errorf("%w: write needs op, item and version", ErrInvalidVersionJSON)
	}

	return NewVersionedWrite(*fields.Op, *fields.Item, string(fields.Version))
}

// Clock is one entry of a vector clock.
type Clock struct {
	Node      string `json:"node"`
	Timestamp int    `json:"timestamp"`
}

// Version is one sibling of a key as the store returns it on read.
type Version struct {
	Items  []string `json:"items"`
	Clocks []Clock  `json:"clocks"`
}
