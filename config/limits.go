package config

import "time"

// Limits bounds the resources a single document may consume while it is
// loaded, decoded or rendered.
type Limits struct {
	// Maximum decompressed stream size. Default: 100 MB.
	MaxDecompressedSize int64 `yaml:"max_decompressed_size"`

	// Maximum nesting of arrays and dictionaries. Default: 100.
	MaxIndirectDepth int `yaml:"max_indirect_depth"`

	// Maximum number of cross-reference sections followed through /Prev. Default: 50.
	MaxXRefDepth int `yaml:"max_xref_depth"`

	// Maximum form XObject nesting while rendering. Default: 20.
	MaxXObjectDepth int `yaml:"max_xobject_depth"`

	// Maximum array size (number of elements). Default: 100,000.
	MaxArraySize int `yaml:"max_array_size"`

	// Maximum dictionary size (number of entries). Default: 10,000.
	MaxDictSize int `yaml:"max_dict_size"`

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64 `yaml:"max_string_length"`

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64 `yaml:"max_stream_length"`

	// Maximum decode time per stream. Default: 30s.
	MaxDecodeTime time.Duration `yaml:"max_decode_time"`

	// Maximum canvas size in pixels for one rendered page. Default: 64M.
	MaxRenderPixels int64 `yaml:"max_render_pixels"`
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024, // 100 MB
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxXObjectDepth:     20,
		MaxArraySize:        100000,
		MaxDictSize:         10000,
		MaxStringLength:     10 * 1024 * 1024, // 10 MB
		MaxStreamLength:     50 * 1024 * 1024, // 50 MB
		MaxDecodeTime:       30 * time.Second,
		MaxRenderPixels:     64 * 1024 * 1024,
	}
}

// withDefaults fills zero fields from DefaultLimits so a partial YAML file
// only overrides what it names.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = d.MaxIndirectDepth
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxXObjectDepth <= 0 {
		l.MaxXObjectDepth = d.MaxXObjectDepth
	}
	if l.MaxArraySize <= 0 {
		l.MaxArraySize = d.MaxArraySize
	}
	if l.MaxDictSize <= 0 {
		l.MaxDictSize = d.MaxDictSize
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	if l.MaxDecodeTime <= 0 {
		l.MaxDecodeTime = d.MaxDecodeTime
	}
	if l.MaxRenderPixels <= 0 {
		l.MaxRenderPixels = d.MaxRenderPixels
	}
	return l
}
