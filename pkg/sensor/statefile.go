package sensor

import (
	"context"
	"time"

	"github.com/bruin-data/session-summary/pkg/state"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// StateFileSensor reads the run state file the upstream workflow leaves behind. It is ready when the upstream task
// succeeded in a run saved at or after NotBefore; a missing file means the upstream has not run yet.
type StateFileSensor struct {
	Fs        afero.Fs
	Path      string
	Task      string
	NotBefore time.Time
}

func (s *StateFileSensor) Poke(context.Context) (bool, error) {
	exists, err := afero.Exists(s.Fs, s.Path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check the state file '%s'", s.Path)
	}
	if !exists {
		return false, nil
	}

	st, err := state.Load(s.Fs, s.Path)
	if err != nil {
		return false, err
	}

	if st.TimeStamp.Before(s.NotBefore) {
		return false, nil
	}

	return st.TaskSucceeded(s.Task), nil
}
