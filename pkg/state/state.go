package state

import (
	"encoding/json"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var version = "dev"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// TaskState is the outcome of a single task instance of a run.
type TaskState struct {
	ID         string            `json:"id"`
	HumanID    string            `json:"human_id"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Upstream   []string          `json:"upstream,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Outputs    map[string]string `json:"outputs,omitempty"`
}

// State is the run-state document of a pipeline. The latest one is kept per pipeline and is what downstream
// workflows poll to decide whether they can start.
type State struct {
	sync.RWMutex `json:"-"`

	Pipeline          string            `json:"pipeline"`
	RunID             string            `json:"run_id"`
	Parameters        map[string]string `json:"parameters"`
	Metadata          Metadata          `json:"metadata"`
	DataIntervalStart time.Time         `json:"data_interval_start"`
	DataIntervalEnd   time.Time         `json:"data_interval_end"`
	State             []*TaskState      `json:"state"`
	Version           string            `json:"version"`
	TimeStamp         time.Time         `json:"timestamp"`
}

type Metadata struct {
	Version string `json:"version"`
	OS      string `json:"os"`
}

func NewState(pipelineName, runID string, parameters map[string]string) *State {
	return &State{
		Pipeline:   pipelineName,
		Parameters: parameters,
		Metadata: Metadata{
			Version: version,
			OS:      runtime.GOOS,
		},
		State:     []*TaskState{},
		Version:   "1.0.0",
		TimeStamp: time.Time{},
		RunID:     runID,
	}
}

func (s *State) SetState(states []*TaskState) {
	s.Lock()
	defer s.Unlock()

	s.State = states
}

// TaskSucceeded reports whether the task with the given name succeeded in this run.
func (s *State) TaskSucceeded(name string) bool {
	s.RLock()
	defer s.RUnlock()

	for _, t := range s.State {
		if t.Name == name && t.Status == StatusSucceeded {
			return true
		}
	}

	return false
}

// FilePath is where the latest state of the given pipeline lives under the state directory.
func FilePath(dir, pipelineName string) string {
	return filepath.Join(dir, pipelineName+".json")
}

// Save writes the state as the latest state of its pipeline, replacing the previous one. The file is written to
// a temporary path first and renamed, so that pollers never read a half written document.
func (s *State) Save(fs afero.Fs, dir string) error {
	s.Lock()
	s.TimeStamp = time.Now().UTC()
	content, err := json.MarshalIndent(s, "", "  ")
	s.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to marshal the run state")
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create the state directory '%s'", dir)
	}

	target := FilePath(dir, s.Pipeline)
	tmp := target + ".tmp"
	if err := afero.WriteFile(fs, tmp, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write the run state to '%s'", tmp)
	}

	if err := fs.Rename(tmp, target); err != nil {
		return errors.Wrapf(err, "failed to move the run state to '%s'", target)
	}

	return nil
}

func Load(fs afero.Fs, filePath string) (*State, error) {
	content, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, err
	}

	var s State
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse the run state in '%s'", filePath)
	}

	return &s, nil
}
