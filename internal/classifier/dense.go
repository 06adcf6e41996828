package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DenseFile is the on-disk form of a Dense model, exported layer by layer
// from the trained network. Weights are laid out [inputs][units].
type DenseFile struct {
	InputSize        int         `json:"input_size"`
	Scaler           *ScalerFile `json:"scaler,omitempty"`
	Layers           []LayerFile `json:"layers"`
	DangerousClasses []int       `json:"dangerous_classes,omitempty"`
	ClassNames       []string    `json:"class_names,omitempty"`
}

// ScalerFile standardises inputs as (x - mean) / scale before the first layer.
type ScalerFile struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LayerFile is one fully connected layer.
type LayerFile struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type activation func([]float64)

var activations = map[string]activation{
	"":        func([]float64) {},
	"linear":  func([]float64) {},
	"relu":    relu,
	"sigmoid": sigmoid,
	"tanh":    tanh,
	"softmax": softmax,
}

type denseLayer struct {
	weights *mat.Dense // inputs x units
	bias    *mat.VecDense
	act     activation
	units   int
}

// Dense is a feed-forward network of fully connected layers.
type Dense struct {
	inputSize  int
	mean       []float64
	scale      []float64
	layers     []denseLayer
	dangerous  map[int]bool
	classNames []string
}

// LoadDense reads a Dense model from a JSON file.
func LoadDense(path string) (*Dense, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var file DenseFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	return NewDense(file)
}

// NewDense validates file and builds the network it describes. Without
// dangerous_classes, class 1 is the only dangerous class.
func NewDense(file DenseFile) (*Dense, error) {
	if file.InputSize <= 0 {
		return nil, errors.New("model: input_size must be positive")
	}
	if len(file.Layers) == 0 {
		return nil, errors.New("model: no layers")
	}

	d := &Dense{
		inputSize:  file.InputSize,
		dangerous:  make(map[int]bool),
		classNames: file.ClassNames,
	}

	if s := file.Scaler; s != nil {
		if len(s.Mean) != file.InputSize || len(s.Scale) != file.InputSize {
			return nil, fmt.Errorf("model: scaler has %d/%d values, want %d", len(s.Mean), len(s.Scale), file.InputSize)
		}
		for i, v := range s.Scale {
			if v == 0 {
				return nil, fmt.Errorf("model: scaler scale[%d] is zero", i)
			}
		}
		d.mean, d.scale = s.Mean, s.Scale
	}

	in := file.InputSize
	for i, l := range file.Layers {
		layer, err := buildLayer(l, in)
		if err != nil {
			return nil, fmt.Errorf("model: layer %d: %w", i, err)
		}
		d.layers = append(d.layers, layer)
		in = layer.units
	}

	numClasses := d.NumClasses()
	if len(file.ClassNames) > 0 && len(file.ClassNames) != numClasses {
		return nil, fmt.Errorf("model: %d class names for %d classes", len(file.ClassNames), numClasses)
	}

	dangerous := file.DangerousClasses
	if dangerous == nil {
		dangerous = []int{1}
	} else {
		for _, c := range dangerous {
			if c < 0 || c >= numClasses {
				return nil, fmt.Errorf("model: dangerous class %d out of range [0, %d)", c, numClasses)
			}
		}
	}
	for _, c := range dangerous {
		d.dangerous[c] = true
	}
	return d, nil
}

func buildLayer(l LayerFile, in int) (denseLayer, error) {
	act, ok := activations[strings.ToLower(l.Activation)]
	if !ok {
		return denseLayer{}, fmt.Errorf("unknown activation %q", l.Activation)
	}
	if len(l.Weights) != in {
		return denseLayer{}, fmt.Errorf("weights have %d rows, want %d", len(l.Weights), in)
	}
	units := len(l.Bias)
	if units == 0 {
		return denseLayer{}, errors.New("empty bias")
	}

	data := make([]float64, 0, in*units)
	for r, row := range l.Weights {
		if len(row) != units {
			return denseLayer{}, fmt.Errorf("weights row %d has %d columns, want %d", r, len(row), units)
		}
		data = append(data, row...)
	}

	return denseLayer{
		weights: mat.NewDense(in, units, data),
		bias:    mat.NewVecDense(units, append([]float64(nil), l.Bias...)),
		act:     act,
		units:   units,
	}, nil
}

// InputSize implements Classifier.
func (d *Dense) InputSize() int { return d.inputSize }

// NumClasses implements Classifier.
func (d *Dense) NumClasses() int { return d.layers[len(d.layers)-1].units }

// IsDangerous implements Classifier.
func (d *Dense) IsDangerous(class int) bool { return d.dangerous[class] }

// ClassName implements Classifier. Without class_names it returns "class_<n>".
func (d *Dense) ClassName(class int) string {
	if class >= 0 && class < len(d.classNames) {
		return d.classNames[class]
	}
	return fmt.Sprintf("class_%d", class)
}

// Predict implements Classifier.
func (d *Dense) Predict(ctx context.Context, batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != d.inputSize {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), d.inputSize)
		}
		out[i] = d.forward(row)
	}
	return out, nil
}

func (d *Dense) forward(row []float64) []float64 {
	x := append([]float64(nil), row...)
	if d.mean != nil {
		floats.Sub(x, d.mean)
		floats.Div(x, d.scale)
	}

	v := mat.NewVecDense(len(x), x)
	for _, l := range d.layers {
		y := mat.NewVecDense(l.units, nil)
		y.MulVec(l.weights.T(), v)
		y.AddVec(y, l.bias)
		l.act(y.RawVector().Data)
		v = y
	}
	return v.RawVector().Data
}

func relu(x []float64) {
	for i, v := range x {
		x[i] = math.Max(0, v)
	}
}

func sigmoid(x []float64) {
	for i, v := range x {
		x[i] = 1 / (1 + math.Exp(-v))
	}
}

func tanh(x []float64) {
	for i, v := range x {
		x[i] = math.Tanh(v)
	}
}

func softmax(x []float64) {
	peak := floats.Max(x)
	sum := 0.0
	for i, v := range x {
		x[i] = math.Exp(v - peak)
		sum += x[i]
	}
	floats.Scale(1/sum, x)
}
