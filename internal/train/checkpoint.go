package train

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
)

// CheckpointManager saves the model every saveEpochs epochs as
// <dir>/<trainID>_<epoch> and overwrites the <dir>/<trainID>.json snapshot.
type CheckpointManager struct {
	dir        string
	trainID    string
	saveEpochs int
}

func NewCheckpointManager(dir, trainID string, saveEpochs int) *CheckpointManager {
	return &CheckpointManager{
		dir:        dir,
		trainID:    trainID,
		saveEpochs: saveEpochs,
	}
}

func (cm *CheckpointManager) Due(epoch int) bool {
	return cm.saveEpochs > 0 && epoch%cm.saveEpochs == 0
}

func (cm *CheckpointManager) CheckpointPath(epoch int) string {
	return filepath.Join(cm.dir, fmt.Sprintf("%v_%v", cm.trainID, epoch))
}

func (cm *CheckpointManager) SnapshotPath() string {
	return filepath.Join(cm.dir, cm.trainID+".json")
}

func (cm *CheckpointManager) MaybeSave(epoch int, model IModel) (bool, error) {
	if !cm.Due(epoch) {
		return false, nil
	}
	var err = os.MkdirAll(cm.dir, 0o755)
	if err != nil {
		return false, err
	}
	var path = cm.CheckpointPath(epoch)
	err = model.Save(path)
	if err != nil {
		return false, fmt.Errorf("save checkpoint %v: %w", path, err)
	}
	err = SaveSnapshot(cm.SnapshotPath(), model.Parameters())
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	return true, nil
}

// SaveSnapshot writes parameter name -> nested lists shaped like the parameter.
func SaveSnapshot(path string, params []*ml.Parameter) error {
	var snapshot = make(map[string]any, len(params))
	for _, p := range params {
		snapshot[p.Name] = nest(p.Data, p.Shape)
	}

	var tmp = path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	defer f.Close()

	var w = bufio.NewWriter(f)
	err = json.NewEncoder(w).Encode(snapshot)
	if err != nil {
		return err
	}
	err = w.Flush()
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func nest(data []float64, shape []int) any {
	if len(shape) <= 1 {
		return data
	}
	var stride = len(data) / shape[0]
	var result = make([]any, shape[0])
	for i := range result {
		result[i] = nest(data[i*stride:(i+1)*stride], shape[1:])
	}
	return result
}
