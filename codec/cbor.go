// Package codec wraps the CBOR encoder shared by the ticket wire format
// and the on-disk room history records.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: the same ticket always
// produces the same bytes, so two peers sharing a room share a ticket string.
var encMode cbor.EncMode

// decMode rejects duplicate map keys and trailing bytes.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 16,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a single CBOR data item into v. Extra bytes after the
// item are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
