package dataset

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/meikuraledutech/neurons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func column(vs ...float64) *mat.Dense { return mat.NewDense(len(vs), 1, vs) }

func TestMemory_At(t *testing.T) {
	m := Memory{{Input: column(1), Target: column(2)}}

	ex, err := m.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ex.Input.At(0, 0))

	_, err = m.At(1)
	assert.ErrorIs(t, err, ErrIndex)
	_, err = m.At(-1)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestBatch_JoinsColumns(t *testing.T) {
	m := Memory{
		{Input: column(1, 2), Target: column(1)},
		{Input: column(3, 4), Target: column(2)},
		{Input: column(5, 6), Target: column(3)},
	}

	b, err := Batch(m, 2)
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())

	first, _ := b.At(0)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 3, 2, 4}), first.Input))
	assert.True(t, mat.Equal(mat.NewDense(1, 2, []float64{1, 2}), first.Target))

	last, _ := b.At(1)
	r, c := last.Input.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
}

func TestBatch_Errors(t *testing.T) {
	_, err := Batch(Memory{}, 0)
	assert.ErrorIs(t, err, ErrParams)

	m := Memory{
		{Input: column(1, 2), Target: column(1)},
		{Input: column(3), Target: column(2)},
	}
	_, err = Batch(m, 2)
	assert.ErrorIs(t, err, ErrParams)
}

func TestRandom_TargetIsSum(t *testing.T) {
	m := Random(3, 2, 4, 7)
	require.Len(t, m, 4)
	for _, ex := range m {
		sum := mat.Sum(ex.Input)
		assert.InDelta(t, sum, ex.Target.At(0, 0), 1e-12)
		assert.InDelta(t, sum, ex.Target.At(1, 0), 1e-12)
	}
	assert.True(t, mat.Equal(m[0].Input, Random(3, 2, 4, 7)[0].Input), "same seed, same data")
}

func TestOpen_Random(t *testing.T) {
	ds, err := Open(json.RawMessage(`{"kind":"random","in":4,"out":1,"count":10,"valid_size":2,"batch_size":4}`))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Train.Len()) // 8 examples in batches of 4
	assert.Equal(t, 1, ds.Valid.Len())
	assert.Equal(t, 1, ds.Test.Len())
}

func TestOpen_Defaults(t *testing.T) {
	ds, err := Open(nil)
	require.NoError(t, err)
	assert.Equal(t, 16, ds.Train.Len())
	assert.Equal(t, 0, ds.Valid.Len())
}

func TestOpen_Invalid(t *testing.T) {
	for name, raw := range map[string]string{
		"kind":       `{"kind":"imagenet"}`,
		"batch size": `{"batch_size":-1}`,
		"shape":      `{"in":0}`,
		"json":       `{`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Open(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrParams)
		})
	}
}

func idx(dims []uint32, data []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(0x0803))
	for _, d := range dims {
		_ = binary.Write(&buf, binary.BigEndian, d)
	}
	buf.Write(data)
	return buf.Bytes()
}

func TestReadIDX(t *testing.T) {
	dims, data, err := ReadIDX(bytes.NewReader(idx([]uint32{2, 3}, []byte{1, 2, 3, 4, 5, 6})), []int{-1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, dims)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)

	_, _, err = ReadIDX(bytes.NewReader(idx([]uint32{2, 4}, make([]byte, 8))), []int{-1, 3})
	assert.ErrorIs(t, err, ErrFormat)

	_, _, err = ReadIDX(bytes.NewReader(idx([]uint32{2, 3}, make([]byte, 5))), []int{-1, 3})
	assert.ErrorIs(t, err, ErrFormat)
}

func writeMNIST(t *testing.T, dir, split string, labels []byte) {
	t.Helper()
	n := uint32(len(labels))
	pixels := make([]byte, int(n)*mnistSide*mnistSide)
	for i := range pixels {
		pixels[i] = 255
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, split+"-images-idx3-ubyte"), idx([]uint32{n, mnistSide, mnistSide}, pixels), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, split+"-labels-idx1-ubyte"), idx([]uint32{n}, labels), 0o644))
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, "train", []byte{3, 7})

	m, err := LoadMNIST(dir, "train")
	require.NoError(t, err)
	require.Len(t, m, 2)

	r, c := m[0].Input.Dims()
	assert.Equal(t, 784, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, 0.5, m[0].Input.At(0, 0), 1e-12)
	assert.Equal(t, 1.0, m[1].Target.At(7, 0))
	assert.Equal(t, 1.0, mat.Sum(m[1].Target))
}

func TestOpenMNIST_Split(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, "train", []byte{0, 1, 2, 3, 4})
	writeMNIST(t, dir, "t10k", []byte{5, 6})

	ds, err := Open(json.RawMessage(`{"kind":"mnist","dir":"` + dir + `","valid_size":1,"batch_size":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Train.Len())
	assert.Equal(t, 1, ds.Valid.Len())
	assert.Equal(t, 1, ds.Test.Len())

	_, err = OpenMNIST(dir, 2, 5)
	assert.ErrorIs(t, err, ErrParams)
}

var _ neurons.Examples = Memory(nil)
