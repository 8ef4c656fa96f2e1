package rpc

import (
	"encoding/json"

	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
)

// DecodeParams implements the handler parameter-extraction contract:
//   - params == null or [] -> the zero value of T, no error
//   - params == [x]        -> x decoded as T
//   - params == [x, y, …]  -> the whole array decoded as T (T is a
//     struct/slice shaped like the tuple)
func DecodeParams[T any](raw json.RawMessage) (T, error) {
	var zero T
	if len(raw) == 0 || string(raw) == "null" {
		return zero, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return zero, mjerr.BadParams("params must be a JSON array: %v", err)
	}
	if len(arr) == 0 {
		return zero, nil
	}
	if len(arr) == 1 {
		var out T
		if err := json.Unmarshal(arr[0], &out); err != nil {
			return zero, mjerr.BadParams("invalid params: %v", err)
		}
		return out, nil
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, mjerr.BadParams("invalid params: %v", err)
	}
	return out, nil
}
