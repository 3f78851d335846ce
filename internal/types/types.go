package types

import (
	"encoding/json"
	"time"
)

type Optional[T any] struct {
	Value   *T
	Defined bool
}

// UnmarshalJSON is implemented by deferring to the wrapped type (T).
// It will be called only if the value is defined in the JSON payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Defined = true
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Defined || o.Value == nil {
		return []byte("null"), nil
	}

	return json.Marshal(o.Value)
}

func NewFromVal[T any](v T) Optional[T] {
	return Optional[T]{Defined: true, Value: &v}
}

// Milliseconds since the unix epoch
type UnixMilli int64

func UnixMilliNow() UnixMilli {
	return UnixMilli(time.Now().UTC().UnixMilli())
}
