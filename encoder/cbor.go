package encoder

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/holmberd/go-vpack/mapper"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// Core Deterministic Encoding: sorted map keys, shortest integer and
	// float forms.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("encoder: cbor encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("encoder: cbor decoder initialization failed: " + err.Error())
	}
}

// CBOR encodes values as deterministic CBOR. Binary values become byte
// strings and unsigned integers use major type 0. Implements Codec.
type CBOR struct {
	m *mapper.Mapper
}

// NewCBOR returns a CBOR codec using m.
func NewCBOR(m *mapper.Mapper) CBOR {
	return CBOR{m: orDefault(m)}
}

func (c CBOR) Marshal(v any) ([]byte, error) {
	x, err := plain(c.m, v)
	if err != nil {
		return nil, err
	}
	data, err := cborEnc.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("encoder: cbor: %w", err)
	}
	return data, nil
}

func (c CBOR) Unmarshal(data []byte, out any) error {
	var x any
	if err := cborDec.Unmarshal(data, &x); err != nil {
		return fmt.Errorf("encoder: cbor: %w", err)
	}
	return fromPlain(c.m, x, out, nil)
}

// DiagnoseCBOR returns the extended diagnostic notation of a CBOR item.
func DiagnoseCBOR(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
