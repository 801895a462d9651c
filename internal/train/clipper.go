package train

import (
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
)

// WeightLimit keeps weights representable after quantization of the inference net.
const WeightLimit = 1.98

// ClipWeights clamps every layer weight to [-WeightLimit, WeightLimit] in place.
// Biases are left unchanged.
func ClipWeights(params []*ml.Parameter) []*ml.Parameter {
	for _, p := range params {
		if !p.Weight {
			continue
		}
		for i, x := range p.Data {
			p.Data[i] = max(-WeightLimit, min(WeightLimit, x))
		}
	}
	return params
}

// BlendTarget mixes the win probability of the engine score with the game result.
func BlendTarget(cp, wdl, scale, wdlWeight float64) float64 {
	return ml.Sigmoid(cp/scale)*(1-wdlWeight) + wdl*wdlWeight
}

func blendTargets(batch *domain.Batch, scale, wdlWeight float64, target []float64) {
	for i := 0; i < batch.Size; i++ {
		target[i] = BlendTarget(float64(batch.CP[i]), float64(batch.WDL[i]), scale, wdlWeight)
	}
}
