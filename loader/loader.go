// Package loader resolves a binary model file to the correct transformer
// construction: it parses the file header, dispatches to the family
// registered for the header's model type, and constructs the config,
// tokenizer, and transformer in order.
package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/compute"
)

const magic = "ggml"

// headerSize is magic(4) + model_type(4) + version(4).
const headerSize = 12

var (
	// ErrBadMagic is returned when the file does not begin with the
	// expected 4-byte magic.
	ErrBadMagic = errors.New("loader: model file is broken (bad magic)")
	// ErrUnknownModelType is returned when the header's model type has no
	// registered dispatch entry.
	ErrUnknownModelType = errors.New("loader: unknown model type")
)

// VersionMismatchError reports a dispatch entry whose supported version
// does not match the file's declared version.
type VersionMismatchError struct {
	ModelType api.ModelType
	Want      int32
	Got       int32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("loader: %s: only support version %d for now but got %d", e.ModelType, e.Want, e.Got)
}

// Header is the fixed-layout prefix every model file begins with.
type Header struct {
	ModelType api.ModelType
	Version   int32
}

// Result is everything the loader produced from a model file: the
// tokenizer and transformer, ready for the engine to wrap into a Model,
// plus the three blob offsets so a caller can revisit any of them (e.g.
// reloading the transformer under a different max_length without
// re-reading the tokenizer).
type Result struct {
	ModelType   api.ModelType
	Config      api.BaseConfig
	Tokenizer   api.Tokenizer
	Transformer compute.Transformer

	OffsetConfig    int64
	OffsetTokenizer int64
	OffsetTensors   int64
}

// Option configures a single Load call.
type Option func(*options)

type options struct {
	maxLengthOverride int
}

// WithMaxLength clamps the loaded config's MaxLength to n, provided n is
// positive and smaller than the file's own value; it can never raise it.
func WithMaxLength(n int) Option {
	return func(o *options) { o.maxLengthOverride = n }
}

func readHeader(r io.ReaderAt) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return Header{}, fmt.Errorf("loader: reading header: %w", err)
	}
	if string(buf[0:4]) != magic {
		return Header{}, ErrBadMagic
	}
	modelType := int32(buf[4]) | int32(buf[5])<<8 | int32(buf[6])<<16 | int32(buf[7])<<24
	version := int32(buf[8]) | int32(buf[9])<<8 | int32(buf[10])<<16 | int32(buf[11])<<24
	return Header{ModelType: api.ModelType(modelType), Version: version}, nil
}

// Load parses r's header, resolves the registered dispatch entry for its
// model type, and constructs config, tokenizer, and transformer strictly
// in that order.
func Load(r io.ReaderAt, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	entry, ok := lookup(header.ModelType)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known types: %v)", ErrUnknownModelType, header.ModelType, RegisteredTypes())
	}
	if entry.Version != header.Version {
		return nil, &VersionMismatchError{ModelType: header.ModelType, Want: entry.Version, Got: header.Version}
	}

	offsetConfig := int64(headerSize)
	cfg, configLen, err := entry.DecodeConfig(r, offsetConfig)
	if err != nil {
		return nil, fmt.Errorf("loader: decoding config: %w", err)
	}
	cfg.ClampMaxLength(o.maxLengthOverride)

	offsetTokenizer := offsetConfig + configLen
	tok, tokLen, err := entry.NewTokenizer(r, offsetTokenizer, cfg.VocabSize)
	if err != nil {
		return nil, fmt.Errorf("loader: loading tokenizer: %w", err)
	}

	offsetTensors := offsetTokenizer + tokLen
	transformer := entry.NewTransformer(cfg)
	if err := transformer.Load(r, offsetTensors); err != nil {
		return nil, fmt.Errorf("loader: loading transformer parameters: %w", err)
	}

	return &Result{
		ModelType:       header.ModelType,
		Config:          cfg,
		Tokenizer:       tok,
		Transformer:     transformer,
		OffsetConfig:    offsetConfig,
		OffsetTokenizer: offsetTokenizer,
		OffsetTensors:   offsetTensors,
	}, nil
}
