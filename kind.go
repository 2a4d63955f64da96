package neurons

import "fmt"

// Kind tags what a node computes.
type Kind int

const (
	KindInvalid Kind = iota

	// Source supplies external data. Its name is "Dataset".
	Source

	Conv2D
	Linear
	Sigmoid
	Tanh
	HardTanh
	ReLU
	LeakyReLU
	ELU
	ThresholdReLU
	GatedLinearUnit
	LogSoftmax
	Log
	Dropout
	Pool2D
	View
	LayerNorm
	BatchNorm

	CategoricalCrossEntropy
	MeanAbsoluteError
	MeanSquaredError
)

var kindNames = map[Kind]string{
	Source:                  "Dataset",
	Conv2D:                  "Conv2D",
	Linear:                  "Linear",
	Sigmoid:                 "Sigmoid",
	Tanh:                    "Tanh",
	HardTanh:                "HardTanh",
	ReLU:                    "ReLU",
	LeakyReLU:               "LeakyReLU",
	ELU:                     "ELU",
	ThresholdReLU:           "ThresholdReLU",
	GatedLinearUnit:         "GatedLinearUnit",
	LogSoftmax:              "LogSoftmax",
	Log:                     "Log",
	Dropout:                 "Dropout",
	Pool2D:                  "Pool2D",
	View:                    "View",
	LayerNorm:               "LayerNorm",
	BatchNorm:               "BatchNorm",
	CategoricalCrossEntropy: "CategoricalCrossEntropy",
	MeanAbsoluteError:       "MeanAbsoluteError",
	MeanSquaredError:        "MeanSquaredError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsSource reports whether k is the data-source kind.
func (k Kind) IsSource() bool { return k == Source }

// IsLoss reports whether k is one of the loss kinds.
func (k Kind) IsLoss() bool {
	return k == CategoricalCrossEntropy || k == MeanAbsoluteError || k == MeanSquaredError
}

// ParseKind looks a kind up by its name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := Source; k <= MeanSquaredError; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
