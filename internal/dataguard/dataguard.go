// Package dataguard gates arbitrary-data signing so the wallet can never
// be tricked into signing bytes that parse as a tagged blockchain object.
//
// A payload is checked against the reserved tag prefixes twice, once raw
// and once after decoding, then validated against the caller's JSON schema.
// Rejection is final; the signer maps it to a validation error and nothing
// is signed.
package dataguard

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/xeipuuv/gojsonschema"
)

// Encoding identifies how a payload is encoded on its way into the signer.
type Encoding int

const (
	// EncodingNone passes the payload through as-is.
	EncodingNone Encoding = iota

	// EncodingBase64 decodes the payload as standard base64 text.
	EncodingBase64

	// EncodingMsgPack decodes the payload as msgpack and re-serializes it
	// as canonical JSON text.
	EncodingMsgPack
)

// reservedPrefixes is the set of ASCII tags the host chain prepends to
// objects before hashing or signing them.  A payload starting with any of
// these could be replayed as a signed chain object, so the guard rejects
// it outright.
var reservedPrefixes = [][]byte{
	[]byte("appID"),
	[]byte("arc"),
	[]byte("aB"),
	[]byte("aD"),
	[]byte("aO"),
	[]byte("aP"),
	[]byte("aS"),
	[]byte("AS"),
	[]byte("B256"),
	[]byte("BH"),
	[]byte("BR"),
	[]byte("CR"),
	[]byte("GE"),
	[]byte("KP"),
	[]byte("MA"),
	[]byte("MB"),
	[]byte("MX"),
	[]byte("NIC"),
	[]byte("NIR"),
	[]byte("NIV"),
	[]byte("NPR"),
	[]byte("OT1"),
	[]byte("OT2"),
	[]byte("PF"),
	[]byte("PL"),
	[]byte("Program"),
	[]byte("ProgData"),
	[]byte("PS"),
	[]byte("PK"),
	[]byte("SD"),
	[]byte("SpecialAddr"),
	[]byte("STIB"),
	[]byte("spc"),
	[]byte("spm"),
	[]byte("spp"),
	[]byte("sps"),
	[]byte("spv"),
	[]byte("TE"),
	[]byte("TG"),
	[]byte("TL"),
	[]byte("TX"),
	[]byte("VO"),
}

// HasReservedPrefix reports whether data starts with one of the reserved
// host-chain tags.
func HasReservedPrefix(data []byte) bool {
	for _, prefix := range reservedPrefixes {
		if bytes.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// Validate reports whether data may be signed.  Any failure along the way,
// including a decode error or a malformed schema, rejects the payload.
func Validate(data []byte, encoding Encoding, schema []byte) bool {
	if HasReservedPrefix(data) {
		return false
	}

	decoded, ok := decode(data, encoding)
	if !ok {
		return false
	}
	if HasReservedPrefix(decoded) {
		return false
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(decoded),
	)
	if err != nil {
		return false
	}
	return result.Valid()
}

func decode(data []byte, encoding Encoding) ([]byte, bool) {
	switch encoding {
	case EncodingNone:
		return data, true
	case EncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, false
		}
		return decoded, true
	case EncodingMsgPack:
		var v interface{}
		if err := msgpack.Unmarshal(data, &v); err != nil {
			return nil, false
		}
		// encoding/json emits object keys in sorted order, which is the
		// canonical text form the prefix re-check and schema validation
		// run against.
		decoded, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return decoded, true
	default:
		return nil, false
	}
}
