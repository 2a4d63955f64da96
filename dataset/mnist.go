package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meikuraledutech/neurons"
	"gonum.org/v1/gonum/mat"
)

const (
	mnistSide     = 28
	mnistClasses  = 10
	mnistPixelMax = 255.0
)

// ReadIDX reads an idx file: a 4-byte magic, one big-endian uint32 per
// dimension, then one byte per element. dims holds the expected sizes; a
// negative entry accepts any size. It returns the actual sizes and the raw
// bytes.
func ReadIDX(r io.Reader, dims []int) ([]int, []byte, error) {
	br := bufio.NewReader(r)
	var magic uint32
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return nil, nil, fmt.Errorf("%w: magic: %v", ErrFormat, err)
	}
	got := make([]int, len(dims))
	elems := 1
	for i, want := range dims {
		var d uint32
		if err := binary.Read(br, binary.BigEndian, &d); err != nil {
			return nil, nil, fmt.Errorf("%w: dimension %d: %v", ErrFormat, i, err)
		}
		if want >= 0 && int(d) != want {
			return nil, nil, fmt.Errorf("%w: dimension %d is %d, want %d", ErrFormat, i, d, want)
		}
		got[i] = int(d)
		elems *= int(d)
	}
	data := make([]byte, elems)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, nil, fmt.Errorf("%w: %d elements: %v", ErrFormat, elems, err)
	}
	return got, data, nil
}

func readIDXFile(path string, dims []int) ([]int, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadIDX(f, dims)
}

// LoadMNIST reads one split from dir: "train" or "t10k". Images become
// 784×1 columns scaled to [-0.5, 0.5]; labels become one-hot 10×1 columns.
func LoadMNIST(dir, split string) (Memory, error) {
	imDims, pixels, err := readIDXFile(filepath.Join(dir, split+"-images-idx3-ubyte"), []int{-1, mnistSide, mnistSide})
	if err != nil {
		return nil, err
	}
	_, labels, err := readIDXFile(filepath.Join(dir, split+"-labels-idx1-ubyte"), []int{imDims[0]})
	if err != nil {
		return nil, err
	}

	const features = mnistSide * mnistSide
	m := make(Memory, imDims[0])
	for i := range m {
		x := mat.NewDense(features, 1, nil)
		for p, v := range pixels[i*features : (i+1)*features] {
			x.Set(p, 0, (float64(v)-mnistPixelMax/2)/mnistPixelMax)
		}
		label := int(labels[i])
		if label >= mnistClasses {
			return nil, fmt.Errorf("%w: label %d at %d", ErrFormat, label, i)
		}
		t := mat.NewDense(mnistClasses, 1, nil)
		t.Set(label, 0, 1)
		m[i] = neurons.Example{Input: x, Target: t}
	}
	return m, nil
}

// OpenMNIST loads the training and test splits from dir, holds out the last
// validSize training examples for validation, and batches all three.
func OpenMNIST(dir string, batchSize, validSize int) (*neurons.Dataset, error) {
	all, err := LoadMNIST(dir, "train")
	if err != nil {
		return nil, err
	}
	if validSize < 0 || validSize >= len(all) {
		return nil, fmt.Errorf("%w: valid_size %d of %d", ErrParams, validSize, len(all))
	}
	test, err := LoadMNIST(dir, "t10k")
	if err != nil {
		return nil, err
	}
	train, valid := all.Split(validSize)
	return batched(train, valid, test, batchSize)
}
