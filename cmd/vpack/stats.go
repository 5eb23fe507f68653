package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/pflag"

	"github.com/holmberd/go-vpack/vpack"
)

// stats counts values by kind while walking a document.
type stats struct {
	counts   map[vpack.Kind]int
	depth    int
	maxDepth int
	keyBytes int
	strBytes int
}

func newStats() *stats {
	return &stats{counts: make(map[vpack.Kind]int)}
}

func (s *stats) count(k vpack.Kind) error {
	s.counts[k]++
	return nil
}

func (s *stats) Null() error           { return s.count(vpack.KindNull) }
func (s *stats) Bool(bool) error       { return s.count(vpack.KindBool) }
func (s *stats) Int(int64) error       { return s.count(vpack.KindInt) }
func (s *stats) Uint(uint64) error     { return s.count(vpack.KindInt) }
func (s *stats) Double(float64) error  { return s.count(vpack.KindDouble) }
func (s *stats) Binary([]byte) error   { return s.count(vpack.KindBinary) }
func (s *stats) BeginArray(int) error  { return s.open(vpack.KindArray) }
func (s *stats) BeginObject(int) error { return s.open(vpack.KindObject) }

func (s *stats) String(v string) error {
	s.strBytes += len(v)
	return s.count(vpack.KindString)
}

func (s *stats) Key(k string) error {
	s.keyBytes += len(k)
	return nil
}

func (s *stats) EndArray() error  { return s.close() }
func (s *stats) EndObject() error { return s.close() }

func (s *stats) close() error {
	s.depth--
	return nil
}

func (s *stats) open(k vpack.Kind) error {
	s.depth++
	s.maxDepth = max(s.maxDepth, s.depth)
	return s.count(k)
}

func runStats(a *app, _ context.Context, _ *pflag.FlagSet, _ []string) error {
	data, err := a.readInput()
	if err != nil {
		return err
	}
	val, err := vpack.Decode(data)
	if err != nil {
		return err
	}
	st := newStats()
	if err := vpack.Walk(val, st); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "bytes\t%d\n", len(data))
	for _, k := range slices.Sorted(maps.Keys(st.counts)) {
		fmt.Fprintf(a.stdout, "%s\t%d\n", k, st.counts[k])
	}
	fmt.Fprintf(a.stdout, "depth\t%d\n", st.maxDepth)
	fmt.Fprintf(a.stdout, "key bytes\t%d\n", st.keyBytes)
	fmt.Fprintf(a.stdout, "string bytes\t%d\n", st.strBytes)
	return nil
}
