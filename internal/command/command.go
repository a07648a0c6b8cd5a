package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Kind int

const (
	KindGet Kind = iota + 1
	KindRedirectGet
	KindPutPlain
	KindPutVersioned
	KindReconcile
)

func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindRedirectGet:
		return "redirect-get"
	case KindPutPlain:
		return "put-plain"
	case KindPutVersioned:
		return "put-versioned"
	case KindReconcile:
		return "reconcile"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k := KindGet; k <= KindReconcile; k++ {
		if k.String() == name {
			return k, true
		}
	}

	return 0, false
}

// IsWrite reports whether the command sends a request body.
func (k Kind) IsWrite() bool {
	return k == KindPutPlain || k == KindPutVersioned || k == KindReconcile
}

// Command is one request against the store. It is built by the New*
// constructors and never changes afterwards.
type Command struct {
	kind     Kind
	address  string
	hashKey  string
	key      string
	write    WriteValue
	versions []Version
}

func NewGet(address, key string) (Command, error) {
	if err := requireNonEmpty("address", address, "key", key); err != nil {
		return Command{}, err
	}

	return Command{kind: KindGet, address: address, key: key}, nil
}

func NewRedirectGet(address, hashKey, key string) (Command, error) {
	if err := requireNonEmpty("address", address, "hashKey", hashKey, "key", key); err != nil {
		return Command{}, err
	}

	return Command{kind: KindRedirectGet, address: address, hashKey: hashKey, key: key}, nil
}

func NewPutPlain(address, key, data string) (Command, error) {
	if err := requireNonEmpty("address", address, "key", key); err != nil {
		return Command{}, err
	}

	return Command{kind: KindPutPlain, address: address, key: key, write: PlainWrite{Data: data}}, nil
}

// NewPutVersioned validates versionJSON before anything is sent, so a
// malformed version never reaches the network.
func NewPutVersioned(address, key, op, item, versionJSON string) (Command, error) {
	if err := requireNonEmpty("address", address, "key", key); err != nil {
		return Command{}, err
	}

	write, err := NewVersionedWrite(op, item, versionJSON)

	if err != nil {
		return Command{}, err
	}

	return Command{kind: KindPutVersioned, address: address, key: key, write: write}, nil
}

// NewReconcile builds a merge request from a JSON array of versions as
// returned by a read of the key.
func NewReconcile(address, key, versionsJSON string) (Command, error) {
	if err := requireNonEmpty("address", address, "key", key); err != nil {
		return Command{}, err
	}

	var versions []Version

	if err := json.Unmarshal([]byte(versionsJSON), &versions); err != nil {
		return Command{}, fmt.Errorf("%w: %s", ErrInvalidVersionJSON, err)
	}

	if len(versions) == 0 {
		return Command{}, fmt.Errorf("%w: at least one version is required", ErrInvalidVersionJSON)
	}

	return Command{kind: KindReconcile, address: address, key: key, versions: versions}, nil
}

func (c Command) Kind() Kind {
	return c.kind
}

func (c Command) Address() string {
	return c.address
}

func (c Command) HashKey() string {
	return c.hashKey
}

func (c Command) Key() string {
	return c.key
}

// Write returns the payload of a put command, nil for reads and reconciles.
func (c Command) Write() WriteValue {
	return c.write
}

func (c Command) Versions() []Version {
	return append([]Version(nil), c.versions...)
}

func (c Command) Method() string {
	if c.kind.IsWrite() {
		return http.MethodPost
	}

	return http.MethodGet
}

// Path returns the request path. Keys are used verbatim unless escape is
// set, in which case they are path-escaped.
func (c Command) Path(escape bool) string {
	segment := func(s string) string {
		if escape {
			return url.PathEscape(s)
		}

		return s
	}

	switch c.kind {
	case KindGet:
		return "/get/" + segment(c.key)
	case KindRedirectGet:
		return "/get/" + segment(c.hashKey) + "/" + segment(c.key)
	case KindPutPlain, KindPutVersioned:
		return "/put/" + segment(c.key)
	case KindReconcile:
		return "/reconcile/merge/" + segment(c.key)
	}

	return ""
}

// Body returns the JSON request body, nil for reads.
func (c Command) Body() ([]byte, error) {
	switch c.kind {
	case KindPutPlain, KindPutVersioned:
		return json.Marshal(c.write)
	case KindReconcile:
		return json.Marshal(c.versions)
	}

	return nil, nil
}

// BaseURL normalizes the address. Bare host:port values get an http scheme.
func (c Command) BaseURL() string {
	address := strings.TrimRight(c.address, "/")

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	return address
}

func (c Command) URL(escape bool) string {
	return c.BaseURL() + c.Path(escape)
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s", c.kind, c.URL(false))
}

func requireNonEmpty(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: %s", ErrEmptyArgument, pairs[i])
		}
	}

	return nil
}
