package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/holmberd/go-vpack/encoder"
	"github.com/holmberd/go-vpack/vpack"
)

const (
	formatVPack    = "vpack"
	formatJSON     = "json"
	formatCBOR     = "cbor"
	formatCBORDiag = "cbor-diag"
	formatProto    = "proto"
)

func readValue(format string, data []byte) (*vpack.Value, error) {
	var (
		val *vpack.Value
		err error
	)
	switch format {
	case formatVPack:
		return vpack.Decode(data)
	case formatJSON:
		return vpack.FromJSON(jsonc.ToJSON(data))
	case formatCBOR:
		err = encoder.NewCBOR(nil).Unmarshal(data, &val)
	case formatProto:
		err = encoder.NewProto(nil).Unmarshal(data, &val)
	default:
		return nil, fmt.Errorf("%w: unknown input format %q", errUsage, format)
	}
	if err != nil {
		return nil, err
	}
	if val == nil {
		val = vpack.Null()
	}
	return val, nil
}

type writeOptions struct {
	vpack  vpack.Options
	indent bool
}

func writeValue(format string, val *vpack.Value, opts writeOptions) ([]byte, error) {
	switch format {
	case formatVPack:
		return vpack.EncodeOptions(val, opts.vpack)
	case formatJSON:
		data, err := vpack.Encode(val)
		if err != nil {
			return nil, err
		}
		s, err := vpack.NewSlice(data)
		if err != nil {
			return nil, err
		}
		return renderJSON(s, opts.indent)
	case formatCBOR:
		return encoder.NewCBOR(nil).Marshal(val)
	case formatCBORDiag:
		data, err := encoder.NewCBOR(nil).Marshal(val)
		if err != nil {
			return nil, err
		}
		diag, err := encoder.DiagnoseCBOR(data)
		if err != nil {
			return nil, err
		}
		return []byte(diag + "\n"), nil
	case formatProto:
		return encoder.NewProto(nil).Marshal(val)
	}
	return nil, fmt.Errorf("%w: unknown output format %q", errUsage, format)
}

// renderJSON renders s as JSON followed by a newline.
func renderJSON(s vpack.Slice, indent bool) ([]byte, error) {
	out, err := vpack.ToJSON(s)
	if err != nil {
		return nil, err
	}
	if indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, out, "", "  "); err != nil {
			return nil, err
		}
		out = buf.Bytes()
	}
	return append(out, '\n'), nil
}

// navigate follows path through objects and, for numeric elements, arrays.
func navigate(s vpack.Slice, path []string) (vpack.Slice, error) {
	for i, p := range path {
		var err error
		if s.IsArray() {
			idx, convErr := strconv.Atoi(p)
			if convErr != nil {
				return vpack.Slice{}, fmt.Errorf("path element %d: %q is not an array index", i, p)
			}
			s, err = s.At(idx)
		} else {
			s, err = s.Get(p)
		}
		if err != nil {
			return vpack.Slice{}, fmt.Errorf("path element %d: %w", i, err)
		}
	}
	return s, nil
}

func jsonFlags(fs *pflag.FlagSet) {
	fs.Bool("indent", false, "indent JSON output")
}

func encodeFlags(fs *pflag.FlagSet) {
	fs.Bool("compact", false, "write arrays and objects without index tables")
	fs.Bool("unsorted", false, "write object index tables in insertion order")
}

func convertFlags(fs *pflag.FlagSet) {
	encodeFlags(fs)
	jsonFlags(fs)
	fs.String("from", formatVPack, "input format: vpack, json, cbor or proto")
	fs.String("to", formatJSON, "output format: vpack, json, cbor, cbor-diag or proto")
}

func optionsFrom(fs *pflag.FlagSet) writeOptions {
	var opts writeOptions
	opts.vpack.Compact, _ = fs.GetBool("compact")
	opts.vpack.Unsorted, _ = fs.GetBool("unsorted")
	opts.indent, _ = fs.GetBool("indent")
	return opts
}

func (a *app) convert(from, to string, opts writeOptions) error {
	data, err := a.readInput()
	if err != nil {
		return err
	}
	val, err := readValue(from, data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", from, err)
	}
	out, err := writeValue(to, val, opts)
	if err != nil {
		return fmt.Errorf("writing %s: %w", to, err)
	}
	a.logger.Debug("converted document", "from", from, "to", to, "in", len(data), "out", len(out))
	_, err = a.stdout.Write(out)
	return err
}

func runEncode(a *app, _ context.Context, fs *pflag.FlagSet, _ []string) error {
	return a.convert(formatJSON, formatVPack, optionsFrom(fs))
}

func runDecode(a *app, _ context.Context, fs *pflag.FlagSet, _ []string) error {
	return a.convert(formatVPack, formatJSON, optionsFrom(fs))
}

func runConvert(a *app, _ context.Context, fs *pflag.FlagSet, _ []string) error {
	from, _ := fs.GetString("from")
	to, _ := fs.GetString("to")
	return a.convert(from, to, optionsFrom(fs))
}

func runGet(a *app, _ context.Context, fs *pflag.FlagSet, args []string) error {
	data, err := a.readInput()
	if err != nil {
		return err
	}
	s, err := vpack.NewSlice(data)
	if err != nil {
		return err
	}
	v, err := navigate(s, args)
	if err != nil {
		return err
	}
	indent, _ := fs.GetBool("indent")
	out, err := renderJSON(v, indent)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}
