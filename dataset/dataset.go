// Package dataset provides source-node payloads: in-memory example sets,
// batching, and a loader for the MNIST idx files.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrIndex  = errors.New("dataset: index out of range")
	ErrParams = errors.New("dataset: invalid params")
	ErrFormat = errors.New("dataset: malformed file")
)

// Memory is an in-memory example set.
type Memory []neurons.Example

func (m Memory) Len() int { return len(m) }

func (m Memory) At(i int) (neurons.Example, error) {
	if i < 0 || i >= len(m) {
		return neurons.Example{}, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(m))
	}
	return m[i], nil
}

// Batch joins consecutive examples column-wise into batches of up to size
// examples. The last batch may be smaller.
func Batch(examples neurons.Examples, size int) (Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrParams, size)
	}
	var out Memory
	for start := 0; start < examples.Len(); start += size {
		end := min(start+size, examples.Len())
		group := make([]neurons.Example, 0, end-start)
		for i := start; i < end; i++ {
			ex, err := examples.At(i)
			if err != nil {
				return nil, err
			}
			group = append(group, ex)
		}
		in, err := hstack(group, func(e neurons.Example) *mat.Dense { return e.Input })
		if err != nil {
			return nil, err
		}
		target, err := hstack(group, func(e neurons.Example) *mat.Dense { return e.Target })
		if err != nil {
			return nil, err
		}
		out = append(out, neurons.Example{Input: in, Target: target})
	}
	return out, nil
}

func hstack(group []neurons.Example, pick func(neurons.Example) *mat.Dense) (*mat.Dense, error) {
	rows, cols := pick(group[0]).Dims()
	total := 0
	for _, ex := range group {
		r, c := pick(ex).Dims()
		if r != rows {
			return nil, fmt.Errorf("%w: cannot batch %d rows with %d rows", ErrParams, r, rows)
		}
		total += c
	}
	out := mat.NewDense(rows, total, nil)
	at := 0
	for _, ex := range group {
		m := pick(ex)
		_, cols = m.Dims()
		out.Slice(0, rows, at, at+cols).(*mat.Dense).Copy(m)
		at += cols
	}
	return out, nil
}

// Split cuts the last n examples off m.
func (m Memory) Split(n int) (head, tail Memory) {
	n = min(max(n, 0), len(m))
	return m[:len(m)-n], m[len(m)-n:]
}

// Random builds count examples with uniform inputs in [-1, 1) and targets
// equal to the sum of the inputs repeated out times.
func Random(in, out, count int, seed uint64) Memory {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	m := make(Memory, count)
	for i := range m {
		x := mat.NewDense(in, 1, nil)
		sum := 0.0
		for r := 0; r < in; r++ {
			v := rng.Float64()*2 - 1
			x.Set(r, 0, v)
			sum += v
		}
		t := mat.NewDense(out, 1, nil)
		for r := 0; r < out; r++ {
			t.Set(r, 0, sum)
		}
		m[i] = neurons.Example{Input: x, Target: t}
	}
	return m
}

// Params selects and configures a dataset.
type Params struct {
	Kind      string `json:"kind"`
	Dir       string `json:"dir"`
	BatchSize int    `json:"batch_size"`
	ValidSize int    `json:"valid_size"`
	In        int    `json:"in"`
	Out       int    `json:"out"`
	Count     int    `json:"count"`
	Seed      uint64 `json:"seed"`
}

// Open builds a dataset from params. Kinds: "mnist" reads the idx files in
// dir; "random" generates a regression problem.
func Open(raw json.RawMessage) (*neurons.Dataset, error) {
	p := Params{Kind: "random", BatchSize: 1, In: 1, Out: 1, Count: 16}
	if len(bytes.TrimSpace(raw)) > 0 && string(bytes.TrimSpace(raw)) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParams, err)
		}
	}
	if p.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch_size %d", ErrParams, p.BatchSize)
	}

	switch p.Kind {
	case "mnist":
		if p.ValidSize == 0 {
			p.ValidSize = 10000
		}
		return OpenMNIST(p.Dir, p.BatchSize, p.ValidSize)
	case "random":
		if p.In <= 0 || p.Out <= 0 || p.Count <= 0 {
			return nil, fmt.Errorf("%w: random %d->%d x%d", ErrParams, p.In, p.Out, p.Count)
		}
		train, valid := Random(p.In, p.Out, p.Count, p.Seed).Split(p.ValidSize)
		test := Random(p.In, p.Out, max(p.Count/4, 1), p.Seed+1)
		return batched(train, valid, test, p.BatchSize)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrParams, p.Kind)
	}
}

func batched(train, valid, test Memory, size int) (*neurons.Dataset, error) {
	ds := &neurons.Dataset{}
	var err error
	if ds.Train, err = Batch(train, size); err != nil {
		return nil, err
	}
	if ds.Valid, err = Batch(valid, size); err != nil {
		return nil, err
	}
	if ds.Test, err = Batch(test, size); err != nil {
		return nil, err
	}
	return ds, nil
}
