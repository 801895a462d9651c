package train

import (
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
)

// IBatchStream is an endless source of batches.
// newEpoch is true for the first batch of every pass over the data except the first pass.
type IBatchStream interface {
	ReadBatch(device domain.Device) (newEpoch bool, batch *domain.Batch, err error)
}

type IModel interface {
	// Forward returns one prediction per batch position.
	Forward(batch *domain.Batch) []float64
	// Backward accumulates parameter gradients for the last Forward call.
	Backward(batch *domain.Batch, dOut []float64)
	Parameters() []*ml.Parameter
	InputFeatureSet() string
	Save(path string) error
}

type IOptimizer interface {
	ParamGroups() []*ml.ParamGroup
	ZeroGrad()
	Step()
}

type ITrainLog interface {
	Update(positions int64, loss float64)
	Save() error
}
