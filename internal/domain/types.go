package domain

// Device is the compute placement of a training run.
// It is passed explicitly to every component that needs it.
type Device struct {
	Name    string
	Threads int
}

// SparseInput holds active feature indices of one position
// from the side to move perspective and from the other side perspective.
type SparseInput struct {
	Stm  []int32
	Nstm []int32
}

// Batch is a group of encoded training positions consumed in one optimizer step.
// CP and WDL are relative to the side to move.
type Batch struct {
	Inputs []SparseInput
	CP     []float32
	WDL    []float32
	Size   int
}

func NewBatch(capacity int) *Batch {
	return &Batch{
		Inputs: make([]SparseInput, 0, capacity),
		CP:     make([]float32, 0, capacity),
		WDL:    make([]float32, 0, capacity),
	}
}

func (b *Batch) Add(input SparseInput, cp, wdl float32) {
	b.Inputs = append(b.Inputs, input)
	b.CP = append(b.CP, cp)
	b.WDL = append(b.WDL, wdl)
	b.Size++
}
