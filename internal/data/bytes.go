// Package data holds the small wire-level value types shared by every
// protocol schema: raw byte sequences and the packed protocol version.
package data

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Bytes is a byte sequence that renders as unpadded standard-alphabet base64
// in human-readable encodings. Padding is accepted on input and stripped
// before decoding, so padded and unpadded forms decode to identical bytes.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawStdEncoding.EncodeToString(b))
}

func (b *Bytes) UnmarshalJSON(in []byte) error {
	var s string
	if err := json.Unmarshal(in, &s); err != nil {
		return err
	}
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return fmt.Errorf("invalid base64 byte sequence: %w", err)
	}
	*b = decoded
	return nil
}

// String renders the base64 form, matching the JSON representation.
func (b Bytes) String() string {
	return base64.RawStdEncoding.EncodeToString(b)
}
