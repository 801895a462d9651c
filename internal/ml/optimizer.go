package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	Beta1 = 0.9
	Beta2 = 0.999
)

// ParamGroup is a set of parameters sharing one learning rate.
// LR may be changed between steps.
type ParamGroup struct {
	Params []*Parameter
	LR     float64
}

type IOptimizer interface {
	ParamGroups() []*ParamGroup
	ZeroGrad()
	Step()
}

func NewOptimizer(name string, params []*Parameter, lr float64) (IOptimizer, error) {
	switch name {
	case "sgd":
		return NewSGD(params, lr), nil
	case "adam":
		return NewAdam(params, lr), nil
	case "ranger":
		return NewRanger(params, lr), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %v", name)
	}
}

type baseOptimizer struct {
	groups []*ParamGroup
}

func (o *baseOptimizer) ParamGroups() []*ParamGroup {
	return o.groups
}

func (o *baseOptimizer) ZeroGrad() {
	for _, g := range o.groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

type SGD struct {
	baseOptimizer
}

func NewSGD(params []*Parameter, lr float64) *SGD {
	return &SGD{baseOptimizer{groups: []*ParamGroup{{Params: params, LR: lr}}}}
}

func (o *SGD) Step() {
	for _, g := range o.groups {
		for _, p := range g.Params {
			floats.AddScaled(p.Data, -g.LR, p.Grad)
		}
	}
}

type moments struct {
	M1 []float64
	M2 []float64
}

func newMoments(params []*Parameter) []moments {
	var result = make([]moments, len(params))
	for i, p := range params {
		result[i] = moments{
			M1: make([]float64, p.Size()),
			M2: make([]float64, p.Size()),
		}
	}
	return result
}

// Adam without bias correction.
// Elements with zero gradient keep their moments: most input features
// are inactive in a batch.
type Adam struct {
	baseOptimizer
	state []moments
}

func NewAdam(params []*Parameter, lr float64) *Adam {
	return &Adam{
		baseOptimizer: baseOptimizer{groups: []*ParamGroup{{Params: params, LR: lr}}},
		state:         newMoments(params),
	}
}

func (o *Adam) Step() {
	var index int
	for _, g := range o.groups {
		for _, p := range g.Params {
			var st = &o.state[index]
			index++
			for i, grad := range p.Grad {
				if grad == 0 {
					// nothing to calculate
					continue
				}
				st.M1[i] = st.M1[i]*Beta1 + grad*(1-Beta1)
				st.M2[i] = st.M2[i]*Beta2 + (grad*grad)*(1-Beta2)
				p.Data[i] -= g.LR * st.M1[i] / (math.Sqrt(st.M2[i]) + 1e-8)
			}
		}
	}
}

// Ranger is RAdam with Lookahead.
type Ranger struct {
	baseOptimizer
	Beta1     float64
	Beta2     float64
	Eps       float64
	Alpha     float64
	K         int
	Threshold float64

	state []moments
	slow  [][]float64
	diff  []float64
	steps int
}

func NewRanger(params []*Parameter, lr float64) *Ranger {
	var slow = make([][]float64, len(params))
	var maxSize int
	for i, p := range params {
		slow[i] = append([]float64(nil), p.Data...)
		maxSize = max(maxSize, p.Size())
	}
	return &Ranger{
		baseOptimizer: baseOptimizer{groups: []*ParamGroup{{Params: params, LR: lr}}},
		Beta1:         0.95,
		Beta2:         0.999,
		Eps:           1e-5,
		Alpha:         0.5,
		K:             6,
		Threshold:     5,
		state:         newMoments(params),
		slow:          slow,
		diff:          make([]float64, maxSize),
	}
}

func (o *Ranger) Step() {
	o.steps++
	var t = float64(o.steps)
	var beta1t = math.Pow(o.Beta1, t)
	var beta2t = math.Pow(o.Beta2, t)
	var rhoInf = 2/(1-o.Beta2) - 1
	var rho = rhoInf - 2*t*beta2t/(1-beta2t)

	var rectified = rho > o.Threshold
	// eps is added to the uncorrected sqrt(M2), the bias correction is in stepSize
	var stepSize = 1 / (1 - beta1t)
	if rectified {
		var r = math.Sqrt((rho - 4) * (rho - 2) * rhoInf / ((rhoInf - 4) * (rhoInf - 2) * rho))
		stepSize = r * math.Sqrt(1-beta2t) / (1 - beta1t)
	}

	var index int
	for _, g := range o.groups {
		for _, p := range g.Params {
			var st = &o.state[index]
			for i, grad := range p.Grad {
				st.M1[i] = st.M1[i]*o.Beta1 + grad*(1-o.Beta1)
				st.M2[i] = st.M2[i]*o.Beta2 + (grad*grad)*(1-o.Beta2)
				if rectified {
					p.Data[i] -= g.LR * stepSize * st.M1[i] / (math.Sqrt(st.M2[i]) + o.Eps)
				} else {
					p.Data[i] -= g.LR * stepSize * st.M1[i]
				}
			}
			if o.steps%o.K == 0 {
				var slow = o.slow[index]
				var diff = o.diff[:len(slow)]
				floats.SubTo(diff, p.Data, slow)
				floats.AddScaled(slow, o.Alpha, diff)
				copy(p.Data, slow)
			}
			index++
		}
	}
}
