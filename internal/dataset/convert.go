package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
	"golang.org/x/sync/errgroup"
)

// Positions with a larger absolute score are not used for training.
const MaxTrainingScore = 3000

const convertChunkSize = 4096

type ConvertStats struct {
	Lines   int
	Written int
	Skipped int
}

type textChunk struct {
	firstLine int
	lines     []string
}

type sampleChunk struct {
	samples []Sample
	skipped int
}

// ConvertText reads lines "fen | cp | wdl" and writes binary samples.
// Lines are parsed by a pool of workers, so chunks of the output
// may be reordered relative to the input.
func ConvertText(
	ctx context.Context,
	input io.Reader,
	output *Writer,
	threads int,
) (ConvertStats, error) {
	log.Println("convert started")
	defer log.Println("convert finished")

	var stats ConvertStats

	g, ctx := errgroup.WithContext(ctx)

	var chunks = make(chan textChunk, 16)
	var results = make(chan sampleChunk, 16)

	g.Go(func() error {
		defer close(chunks)
		var lines, err = readTextChunks(ctx, input, chunks)
		stats.Lines = lines
		return err
	})

	var wg = &sync.WaitGroup{}
	for i := 0; i < max(1, threads); i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return parseTextChunks(ctx, chunks, results)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		for chunk := range results {
			stats.Skipped += chunk.skipped
			for i := range chunk.samples {
				var err = output.Write(&chunk.samples[i])
				if err != nil {
					return err
				}
				stats.Written++
			}
		}
		return output.Flush()
	})

	var err = g.Wait()
	return stats, err
}

func readTextChunks(ctx context.Context, input io.Reader, chunks chan<- textChunk) (int, error) {
	var scanner = bufio.NewScanner(input)
	var lineNumber int
	var chunk = textChunk{firstLine: 1}
	var send = func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
		}
		chunk = textChunk{firstLine: lineNumber + 1}
		return nil
	}
	for scanner.Scan() {
		lineNumber++
		chunk.lines = append(chunk.lines, scanner.Text())
		if len(chunk.lines) == convertChunkSize {
			var err = send()
			if err != nil {
				return lineNumber, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNumber, err
	}
	if len(chunk.lines) != 0 {
		return lineNumber, send()
	}
	return lineNumber, nil
}

func parseTextChunks(ctx context.Context, chunks <-chan textChunk, results chan<- sampleChunk) error {
	for chunk := range chunks {
		var result = sampleChunk{samples: make([]Sample, 0, len(chunk.lines))}
		for i, line := range chunk.lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var sample, ok, err = ParseTextSample(line)
			if err != nil {
				return fmt.Errorf("line %v: %w", chunk.firstLine+i, err)
			}
			if !ok {
				result.skipped++
				continue
			}
			result.samples = append(result.samples, sample)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case results <- result:
		}
	}
	return nil
}

// ParseTextSample parses "fen | cp | wdl".
// Score and result in the text are from white's view,
// the sample stores them from the side to move's view.
// ok is false for positions filtered out of training.
func ParseTextSample(line string) (sample Sample, ok bool, err error) {
	var fields = strings.Split(line, "|")
	if len(fields) != 3 {
		return Sample{}, false, fmt.Errorf("bad line %v", line)
	}
	pos, err := chess.ParseFEN(fields[0])
	if err != nil {
		return Sample{}, false, err
	}
	cp, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Sample{}, false, err
	}
	wdl, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Sample{}, false, err
	}
	var result, resultOk = parseResult(wdl)
	if !resultOk {
		return Sample{}, false, fmt.Errorf("bad game result %v", wdl)
	}
	if math.Abs(cp) > MaxTrainingScore {
		return Sample{}, false, nil
	}
	if !pos.WhiteMove {
		cp = -cp
		result = ResultWin - result
	}
	return Sample{
		Pos:    pos,
		CP:     int16(math.Round(cp)),
		Result: result,
	}, true, nil
}

func parseResult(wdl float64) (uint8, bool) {
	switch wdl {
	case 0:
		return ResultLoss, true
	case 0.5:
		return ResultDraw, true
	case 1:
		return ResultWin, true
	default:
		return 0, false
	}
}
