package quality

import (
	"log"
	"math"

	"github.com/ChizhovVadim/nnuetrainer/internal/dataset"
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"github.com/ChizhovVadim/nnuetrainer/internal/train"
)

type IModel interface {
	Forward(batch *domain.Batch) []float64
}

type Config struct {
	Scale     float64
	WDL       float64
	BatchSize int
	Threads   int
}

type Result struct {
	Count   int
	MSE     float64
	AbsCost float64
}

// Run measures the prediction error of a network on validation sample files.
// Every sample is used, there is no score filter.
func Run(model IModel, featureSet features.IFeatureSet, paths []string, config Config) (Result, error) {
	var sum, sumSq float64
	var count int
	var batchSize = max(1, config.BatchSize)

	var samples = make([]dataset.Sample, 0, batchSize)
	var flush = func() {
		if len(samples) == 0 {
			return
		}
		var batch = dataset.EncodeBatch(featureSet, samples, max(1, config.Threads))
		var predicted = model.Forward(batch)
		for i, p := range predicted {
			var target = train.BlendTarget(float64(batch.CP[i]), float64(batch.WDL[i]), config.Scale, config.WDL)
			var x = p - target
			sum += math.Abs(x)
			sumSq += x * x
		}
		count += len(predicted)
		samples = samples[:0]
	}

	for _, path := range paths {
		log.Println("quality", "filepath", path)
		var err = dataset.WalkSampleFile(path, func(s dataset.Sample) error {
			samples = append(samples, s)
			if len(samples) == batchSize {
				flush()
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}
	}
	flush()

	var result = Result{Count: count}
	if count != 0 {
		result.MSE = sumSq / float64(count)
		result.AbsCost = sum / float64(count)
	}
	return result, nil
}
