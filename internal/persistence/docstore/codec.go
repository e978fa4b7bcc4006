package docstore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode packs v as msgpack (using its json field names) inside an lz4 frame.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	enc := msgpack.NewEncoder(zw)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Decode(b []byte, v any) error {
	zr := lz4.NewReader(bytes.NewReader(b))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("lz4: %w", err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}
