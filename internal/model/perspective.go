package model

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
	"gonum.org/v1/gonum/floats"
)

// Perspective is a two layer NNUE network.
// One feature transformer is applied to the side to move and to the other side,
// both clipped outputs are concatenated and fed to a single sigmoid output.
type Perspective struct {
	featureSet features.IFeatureSet
	hidden     int
	threads    int
	activation ml.IActivationFn
	output     ml.IActivationFn

	ftWeight  *ml.Parameter
	ftBias    *ml.Parameter
	outWeight *ml.Parameter
	outBias   *ml.Parameter

	hiddenSums  [][]float64
	hiddenGrads [][]float64
	predicted   []float64
	outGrads    [][]float64
}

func New(arch string, hidden int, device domain.Device, seed int64) (*Perspective, error) {
	var fs, err = features.Get(arch)
	if err != nil {
		return nil, err
	}
	if hidden <= 0 {
		return nil, fmt.Errorf("bad hidden size %v", hidden)
	}
	return NewPerspective(fs, hidden, device, seed), nil
}

func NewPerspective(fs features.IFeatureSet, hidden int, device domain.Device, seed int64) *Perspective {
	var m = &Perspective{
		featureSet: fs,
		hidden:     hidden,
		threads:    max(1, device.Threads),
		activation: &ml.ClippedReLuActivation{},
		output:     &ml.SigmoidActivation{},
		ftWeight:   ml.NewParameter("ft.weight", true, fs.Size(), hidden),
		ftBias:     ml.NewParameter("ft.bias", false, hidden),
		outWeight:  ml.NewParameter("out.weight", true, 1, 2*hidden),
		outBias:    ml.NewParameter("out.bias", false, 1),
	}
	var rnd = rand.New(rand.NewSource(seed))
	// no more than MaxActive non zero input features
	ml.InitUniform(rnd, m.ftWeight.Data, 1.0/float64(fs.MaxActive()))
	ml.InitUniform(rnd, m.outWeight.Data, 2.0/float64(2*hidden+1))
	m.outGrads = make([][]float64, m.threads)
	for i := range m.outGrads {
		m.outGrads[i] = make([]float64, 2*hidden+1)
	}
	return m
}

func (m *Perspective) InputFeatureSet() string {
	return m.featureSet.Name()
}

func (m *Perspective) Parameters() []*ml.Parameter {
	return []*ml.Parameter{m.ftWeight, m.ftBias, m.outWeight, m.outBias}
}

func (m *Perspective) Save(path string) error {
	return SaveParameters(path, m.Parameters())
}

func (m *Perspective) Load(path string) error {
	return LoadParameters(path, m.Parameters())
}

func (m *Perspective) ensureBuffers(size int) {
	for len(m.hiddenSums) < size {
		m.hiddenSums = append(m.hiddenSums, make([]float64, 2*m.hidden))
		m.hiddenGrads = append(m.hiddenGrads, make([]float64, 2*m.hidden))
	}
	if len(m.predicted) < size {
		m.predicted = make([]float64, size)
	}
}

// Forward returns predictions in [0, 1] for every position of the batch.
// The slice is reused by the next call.
func (m *Perspective) Forward(batch *domain.Batch) []float64 {
	m.ensureBuffers(batch.Size)
	parallelFor(m.threads, batch.Size, func(worker, i int) {
		m.predicted[i] = m.forward(&batch.Inputs[i], m.hiddenSums[i])
	})
	return m.predicted[:batch.Size]
}

func (m *Perspective) forward(input *domain.SparseInput, sums []float64) float64 {
	var h = m.hidden
	m.transform(input.Stm, sums[:h])
	m.transform(input.Nstm, sums[h:])
	var x = m.outBias.Data[0]
	for j, s := range sums {
		x += m.outWeight.Data[j] * m.activation.Sigma(s)
	}
	return m.output.Sigma(x)
}

func (m *Perspective) transform(indices []int32, dst []float64) {
	var h = m.hidden
	copy(dst, m.ftBias.Data)
	for _, index := range indices {
		var offset = int(index) * h
		floats.Add(dst, m.ftWeight.Data[offset:offset+h])
	}
}

// Backward accumulates parameter gradients for the batch of the last Forward call.
// dOut is the loss derivative with respect to every prediction.
func (m *Perspective) Backward(batch *domain.Batch, dOut []float64) {
	var h = m.hidden
	for _, g := range m.outGrads {
		clear(g)
	}
	parallelFor(m.threads, batch.Size, func(worker, i int) {
		var p = m.predicted[i]
		// sigmoid derivative expressed through its output
		var dz = dOut[i] * p * (1 - p)
		var sums = m.hiddenSums[i]
		var grads = m.hiddenGrads[i]
		var outGrads = m.outGrads[worker]
		outGrads[2*h] += dz
		for j, s := range sums {
			outGrads[j] += dz * m.activation.Sigma(s)
			grads[j] = dz * m.outWeight.Data[j] * m.activation.SigmaPrime(s)
		}
	})
	for _, g := range m.outGrads {
		floats.Add(m.outWeight.Grad, g[:2*h])
		m.outBias.Grad[0] += g[2*h]
	}

	// every worker owns a slice of hidden neurons, so feature rows are updated without locks
	var chunk = (h + m.threads - 1) / m.threads
	parallelFor(m.threads, m.threads, func(worker, part int) {
		var lo = part * chunk
		var hi = min(h, lo+chunk)
		if lo >= hi {
			return
		}
		for i := 0; i < batch.Size; i++ {
			var grads = m.hiddenGrads[i]
			var input = &batch.Inputs[i]
			floats.Add(m.ftBias.Grad[lo:hi], grads[lo:hi])
			floats.Add(m.ftBias.Grad[lo:hi], grads[h+lo:h+hi])
			for _, index := range input.Stm {
				var offset = int(index) * h
				floats.Add(m.ftWeight.Grad[offset+lo:offset+hi], grads[lo:hi])
			}
			for _, index := range input.Nstm {
				var offset = int(index) * h
				floats.Add(m.ftWeight.Grad[offset+lo:offset+hi], grads[h+lo:h+hi])
			}
		}
	})
}

func parallelFor(threads, n int, fn func(worker, i int)) {
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	for t := 0; t < min(threads, n); t++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= n {
					break
				}
				fn(worker, i)
			}
		}(t)
	}
	wg.Wait()
}
