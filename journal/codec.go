package journal

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/payroll"
)

// Snapshot is everything needed to rebuild a service after restart.
type Snapshot struct {
	State       payroll.State   `json:"state"`
	FundBalance decimal.Decimal `json:"fund_balance"`
}

// encMode is Core Deterministic Encoding (RFC 8949 §4.2). Decimals go
// through MarshalText so that equal amounts always encode to equal bytes
// regardless of their internal exponent, and times keep nanoseconds.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.BinaryMarshaler = cbor.BinaryMarshalerNone
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		BinaryUnmarshaler: cbor.BinaryUnmarshalerNone,
		TextUnmarshaler:   cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("journal: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("journal: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeSnapshot returns the zstd-compressed CBOR form of s.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	raw, err := Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: zstd: %v", ErrBadSnapshot, err)
	}
	var s Snapshot
	if err := Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: cbor: %v", ErrBadSnapshot, err)
	}
	return s, nil
}
