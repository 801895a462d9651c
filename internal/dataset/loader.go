package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyDataset = errors.New("dataset does not contain a full batch")
	ErrLoaderClosed = errors.New("batch loader closed")
)

const defaultPrefetch = 4

type rawBatch struct {
	newEpoch bool
	samples  []Sample
}

type loadedBatch struct {
	newEpoch bool
	batch    *domain.Batch
}

// BatchLoader streams fixed size batches from binary sample files forever,
// starting over when all files are read. The first batch of every pass
// except the first one is flagged as a new epoch.
// A batch handed out by ReadBatch is never touched by the loader again.
type BatchLoader struct {
	paths      []string
	featureSet features.IFeatureSet
	batchSize  int
	prefetch   int

	batches chan loadedBatch
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func NewBatchLoader(
	paths []string,
	featureSet features.IFeatureSet,
	batchSize int,
) (*BatchLoader, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one sample file is expected")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("bad batch size %v", batchSize)
	}
	return &BatchLoader{
		paths:      paths,
		featureSet: featureSet,
		batchSize:  batchSize,
		prefetch:   defaultPrefetch,
	}, nil
}

// SampleFiles returns the *.bin files of a folder in name order.
func SampleFiles(folderPath string) ([]string, error) {
	dirs, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, de := range dirs {
		if !de.IsDir() && filepath.Ext(de.Name()) == ".bin" {
			result = append(result, filepath.Join(folderPath, de.Name()))
		}
	}
	sort.Strings(result)
	return result, nil
}

func (bl *BatchLoader) ReadBatch(device domain.Device) (bool, *domain.Batch, error) {
	if bl.batches == nil {
		bl.start(device)
	}
	var item, ok = <-bl.batches
	if !ok {
		var err = bl.group.Wait()
		if err != nil {
			return false, nil, err
		}
		return false, nil, ErrLoaderClosed
	}
	return item.newEpoch, item.batch, nil
}

func (bl *BatchLoader) Close() error {
	if bl.batches == nil {
		return nil
	}
	bl.cancel()
	var err = bl.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (bl *BatchLoader) start(device domain.Device) {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	bl.cancel = cancel
	bl.group = g

	var raw = make(chan rawBatch, bl.prefetch)
	var batches = make(chan loadedBatch, bl.prefetch)
	bl.batches = batches

	g.Go(func() error {
		defer close(raw)
		return bl.readPasses(ctx, raw)
	})

	g.Go(func() error {
		defer close(batches)
		return bl.encodeBatches(ctx, raw, batches, max(1, device.Threads))
	})
}

func (bl *BatchLoader) readPasses(ctx context.Context, raw chan<- rawBatch) error {
	for pass := 1; ; pass++ {
		var batchCount int
		var samples = make([]Sample, 0, bl.batchSize)
		for _, path := range bl.paths {
			var err = WalkSampleFile(path, func(s Sample) error {
				samples = append(samples, s)
				if len(samples) < bl.batchSize {
					return nil
				}
				var item = rawBatch{
					newEpoch: pass > 1 && batchCount == 0,
					samples:  samples,
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case raw <- item:
				}
				batchCount++
				samples = make([]Sample, 0, bl.batchSize)
				return nil
			})
			if err != nil {
				return err
			}
		}
		if batchCount == 0 {
			return ErrEmptyDataset
		}
		log.Println("dataset pass finished",
			"pass", pass,
			"batches", batchCount,
			"dropped", len(samples))
	}
}

func (bl *BatchLoader) encodeBatches(
	ctx context.Context,
	raw <-chan rawBatch,
	batches chan<- loadedBatch,
	threads int,
) error {
	for item := range raw {
		var batch = EncodeBatch(bl.featureSet, item.samples, threads)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batches <- loadedBatch{newEpoch: item.newEpoch, batch: batch}:
		}
	}
	return nil
}

// EncodeBatch computes network inputs of samples in parallel.
func EncodeBatch(featureSet features.IFeatureSet, samples []Sample, threads int) *domain.Batch {
	var batch = &domain.Batch{
		Inputs: make([]domain.SparseInput, len(samples)),
		CP:     make([]float32, len(samples)),
		WDL:    make([]float32, len(samples)),
		Size:   len(samples),
	}
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	for t := 0; t < max(1, threads); t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(samples) {
					break
				}
				var s = &samples[i]
				batch.Inputs[i] = featureSet.Compute(&s.Pos)
				batch.CP[i] = float32(s.CP)
				batch.WDL[i] = s.WDL()
			}
		}()
	}
	wg.Wait()
	return batch
}
