// Package registry maps display symbols to the opaque lookup tokens the price
// providers understand, and splits the universe into fixed-size scan batches.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSymbol is returned when a symbol is not in the registry.
var ErrUnknownSymbol = errors.New("registry: unknown symbol")

// Instrument pairs a display symbol with its provider token.
type Instrument struct {
	Symbol string
	Token  string
}

// Registry is an immutable, symbol-ordered instrument list.
type Registry struct {
	instruments []Instrument
	bySymbol    map[string]string
}

type fileFormat struct {
	Instruments map[string]string `yaml:"instruments"`
}

// Load reads a YAML registry file:
//
//	instruments:
//	  RELIANCE-EQ: "2885"
//	  TCS-EQ: "11536"
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return New(doc.Instruments)
}

// New builds a registry from a symbol → token mapping.
func New(tokens map[string]string) (*Registry, error) {
	r := &Registry{
		instruments: make([]Instrument, 0, len(tokens)),
		bySymbol:    make(map[string]string, len(tokens)),
	}
	for symbol, token := range tokens {
		if symbol == "" || token == "" {
			return nil, fmt.Errorf("registry: empty symbol or token (%q: %q)", symbol, token)
		}
		r.instruments = append(r.instruments, Instrument{Symbol: symbol, Token: token})
		r.bySymbol[symbol] = token
	}
	sort.Slice(r.instruments, func(i, j int) bool { return r.instruments[i].Symbol < r.instruments[j].Symbol })
	return r, nil
}

// Len returns the number of instruments.
func (r *Registry) Len() int {
	return len(r.instruments)
}

// All returns every instrument in symbol order.
func (r *Registry) All() []Instrument {
	out := make([]Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// Token resolves a display symbol.
func (r *Registry) Token(symbol string) (string, error) {
	token, ok := r.bySymbol[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return token, nil
}

// BatchCount returns how many batches of size the registry splits into.
func (r *Registry) BatchCount(size int) int {
	if size <= 0 || len(r.instruments) == 0 {
		return 0
	}
	return (len(r.instruments) + size - 1) / size
}

// Batch returns the 1-based batch n of the given size.
func (r *Registry) Batch(n, size int) ([]Instrument, error) {
	count := r.BatchCount(size)
	if n < 1 || n > count {
		return nil, fmt.Errorf("batch %d out of range (1-%d)", n, count)
	}
	start := (n - 1) * size
	end := start + size
	if end > len(r.instruments) {
		end = len(r.instruments)
	}
	out := make([]Instrument, end-start)
	copy(out, r.instruments[start:end])
	return out, nil
}
