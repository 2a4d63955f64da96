package layers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/dataset"
)

// Params accepted per kind. Absent fields keep the defaults set in New.
type (
	linearParams struct {
		In   int    `json:"in"`
		Out  int    `json:"out"`
		Bias bool   `json:"bias"`
		Init Init   `json:"init"`
		Seed uint64 `json:"seed"`
	}
	slopeParams struct {
		Slope float64 `json:"slope"`
	}
	alphaParams struct {
		Alpha float64 `json:"alpha"`
	}
	thresholdParams struct {
		Threshold float64 `json:"threshold"`
		Value     float64 `json:"value"`
	}
	dropoutParams struct {
		P    float64 `json:"p"`
		Seed uint64  `json:"seed"`
	}
	viewParams struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}
	layerNormParams struct {
		Eps float64 `json:"eps"`
	}
	batchNormParams struct {
		Features int     `json:"features"`
		Momentum float64 `json:"momentum"`
		Eps      float64 `json:"eps"`
	}
)

func decode(raw json.RawMessage, into any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", ErrParams, err)
	}
	return nil
}

// New builds the module for kind from its JSON params.
func New(kind neurons.Kind, raw json.RawMessage) (neurons.Module, error) {
	switch kind {
	case neurons.Linear:
		p := linearParams{Bias: true, Init: InitXavier}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewLinear(p.In, p.Out, p.Bias, p.Init, p.Seed)
	case neurons.Sigmoid:
		return NewSigmoid(), nil
	case neurons.Tanh:
		return NewTanh(), nil
	case neurons.HardTanh:
		return NewHardTanh(), nil
	case neurons.ReLU:
		return NewReLU(), nil
	case neurons.LeakyReLU:
		p := slopeParams{Slope: 0.01}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewLeakyReLU(p.Slope), nil
	case neurons.ELU:
		p := alphaParams{Alpha: 1}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewELU(p.Alpha), nil
	case neurons.ThresholdReLU:
		p := thresholdParams{Threshold: 1}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewThresholdReLU(p.Threshold, p.Value), nil
	case neurons.GatedLinearUnit:
		return GatedLinearUnit{}, nil
	case neurons.LogSoftmax:
		return LogSoftmax{}, nil
	case neurons.Log:
		return NewLog(), nil
	case neurons.Dropout:
		p := dropoutParams{P: 0.5}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewDropout(p.P, p.Seed)
	case neurons.View:
		p := viewParams{Rows: -1, Cols: 1}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewView(p.Rows, p.Cols)
	case neurons.LayerNorm:
		p := layerNormParams{Eps: 1e-5}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewLayerNorm(p.Eps), nil
	case neurons.BatchNorm:
		p := batchNormParams{Momentum: 0.1, Eps: 1e-5}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return NewBatchNorm(p.Features, p.Momentum, p.Eps)
	case neurons.CategoricalCrossEntropy:
		return NewCategoricalCrossEntropy(), nil
	case neurons.MeanAbsoluteError:
		return NewMeanAbsoluteError(), nil
	case neurons.MeanSquaredError:
		return NewMeanSquaredError(), nil
	case neurons.Conv2D, neurons.Pool2D:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	default:
		return nil, fmt.Errorf("%w: %s", neurons.ErrUnknownKind, kind)
	}
}

// Factory builds modules with New and datasets with dataset.Open.
type Factory struct{}

var _ neurons.Factory = Factory{}

func (Factory) NewModule(kind neurons.Kind, params json.RawMessage) (neurons.Module, error) {
	return New(kind, params)
}

func (Factory) NewDataset(params json.RawMessage) (*neurons.Dataset, error) {
	return dataset.Open(params)
}
