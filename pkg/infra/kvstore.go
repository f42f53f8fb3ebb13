package infra

import (
	"encoding/json"
)

type KVPair struct {
	Key   string
	Value []byte
}

// KVStore is implemented by the badger and consul backends.
type KVStore interface {
	GetName() string
	Set(k string, v string) error
	Get(k string) (v string, err error)
	// SetAny stores v encoded with the store's codec.
	SetAny(k string, v any) error
	GetAny(k string, v any) (found bool, err error)

	// List returns pairs under prefix with keys relative to the store root.
	List(prefix string) ([]*KVPair, error)
	Delete(k string) error
	Close() error
}

// Codec encodes/decodes Go values to/from slices of bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is a JSONcodec that encodes/decodes Go values to/from JSON.
var JSON = JSONcodec{}

type JSONcodec struct{}

func (c JSONcodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c JSONcodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
