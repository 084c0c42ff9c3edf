package httpclient

import (
	"net/http"

	"github.com/vyrodovalexey/fieldremap/internal/policy"
	"github.com/vyrodovalexey/fieldremap/internal/remap"
)

// NewClient returns an *http.Client whose transport remaps bodies of
// allow-listed exchanges. Each call builds an independent client.
func NewClient(mapping remap.FieldMapping, patterns *policy.PatternSet, opts ...Option) *http.Client {
	o := buildOptions(opts)
	return &http.Client{
		Transport: NewTransport(mapping, patterns, opts...),
		Timeout:   o.timeout,
	}
}
