package catalog

import (
	jsoniter "github.com/json-iterator/go"
)

// json is configured to match the standard library's encoding/json behavior,
// the same choice weed/filer/elastic/v7 makes for KV-store values.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes a catalog record for storage as a KV value.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a KV value into a catalog record. Malformed input returns
// an error; callers must count it as a check failure, never panic.
func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
