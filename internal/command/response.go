package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnexpectedShape = errors.New("unexpected response shape")

// Redirect is returned with 307 when the contacted replica does not own
// the hash key.
type Redirect struct {
	Address string `json:"address"`
}

// GetResponse is the typed body of a read. Exactly one field is set for a
// non-empty body.
type GetResponse struct {
	Versions []Version
	Data     *string
	Redirect *Redirect
}

// PutResponse is the typed body of a write. A 302 carries the latest
// clocks when the written version was stale, a 307 carries a redirect.
type PutResponse struct {
	Clocks   []Clock
	Redirect *Redirect
}

func DecodeGetResponse(raw []byte) (GetResponse, error) {
	trimmed := bytes.TrimSpace(raw)

	if isEmptyBody(trimmed) {
		return GetResponse{}, nil
	}

	if trimmed[0] == '[' {
		var versions []Version

		if err := json.Unmarshal(trimmed, &versions); err != nil {
			return GetResponse{}, fmt.Errorf("%w: %s", ErrUnexpectedShape, err)
		}

		return GetResponse{Versions: versions}, nil
	}

	var object struct {
		Data    *string `json:"data"`
		Address *string `json:"address"`
	}

	if err := json.Unmarshal(trimmed, &object); err != nil {
		return GetResponse{}, fmt.Errorf("%w: %s", ErrUnexpectedShape, err)
	}

	switch {
	case object.Address != nil:
		return GetResponse{Redirect: &Redirect{Address: *object.Address}}, nil
	case object.Data != nil:
		return GetResponse{Data: object.Data}, nil
	}

	return GetResponse{}, fmt.Errorf("%w: object has neither data nor address", ErrUnexpectedShape)
}

func DecodePutResponse(raw []byte) (PutResponse, error) {
	trimmed := bytes.TrimSpace(raw)

	if isEmptyBody(trimmed) {
		return PutResponse{}, nil
	}

	if trimmed[0] == '[' {
		var clocks []Clock

		if err := json.Unmarshal(trimmed, &clocks); err != nil {
			return PutResponse{}, fmt.Errorf("%w: %s", ErrUnexpectedShape, err)
		}

		return PutResponse{Clocks: clocks}, nil
	}

	var redirect Redirect

	if err := json.Unmarshal(trimmed, &redirect); err != nil || redirect.Address == "" {
		return PutResponse{}, fmt.Errorf("%w: expected clocks or redirect", ErrUnexpectedShape)
	}

	return PutResponse{Redirect: &redirect}, nil
}

func isEmptyBody(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
