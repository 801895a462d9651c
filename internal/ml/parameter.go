package ml

import (
	"math"
	"math/rand"
)

// Parameter is a named learnable tensor stored row-major.
// Weight marks layer weights; biases leave it false.
type Parameter struct {
	Name   string
	Shape  []int
	Data   []float64
	Grad   []float64
	Weight bool
}

func NewParameter(name string, weight bool, shape ...int) *Parameter {
	var size = 1
	for _, dim := range shape {
		size *= dim
	}
	return &Parameter{
		Name:   name,
		Shape:  shape,
		Data:   make([]float64, size),
		Grad:   make([]float64, size),
		Weight: weight,
	}
}

func (p *Parameter) ZeroGrad() {
	clear(p.Grad)
}

func (p *Parameter) Size() int {
	return len(p.Data)
}

func InitUniform(rnd *rand.Rand, data []float64, variance float64) {
	var uniformVariance = 1.0 / 12
	var scale = math.Sqrt(variance / uniformVariance)
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * scale
	}
}
