package ml

type IModelCost interface {
	Cost(predicted, target float64) float64
	CostPrime(predicted, target float64) float64
}

type MSECost struct{}

func (*MSECost) Cost(predicted, target float64) float64 {
	var x = predicted - target
	return x * x
}

func (*MSECost) CostPrime(predicted, target float64) float64 {
	return 2 * (predicted - target)
}

// BatchCost returns the mean cost over the batch and fills grad
// with the derivative of that mean with respect to each prediction.
// An empty batch has zero cost.
func BatchCost(cost IModelCost, predicted, target, grad []float64) float64 {
	if len(predicted) == 0 {
		return 0
	}
	var n = float64(len(predicted))
	var total float64
	for i := range predicted {
		total += cost.Cost(predicted[i], target[i])
		if grad != nil {
			grad[i] = cost.CostPrime(predicted[i], target[i]) / n
		}
	}
	return total / n
}
