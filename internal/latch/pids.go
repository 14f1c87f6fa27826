package latch

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
)

// pidRegistry is the durable name→PID map behind RegisterPID. Writes go
// through a temp file and rename so a crash never leaves a partial map.
type pidRegistry struct {
	mutex sync.Mutex
	path  string
}

func newPIDRegistry(path string) *pidRegistry {
	return &pidRegistry{path: path}
}

func (r *pidRegistry) Register(name string, pid int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	pids, err := r.load()
	if err != nil {
		return err
	}

	pids[name] = pid
	return r.store(pids)
}

func (r *pidRegistry) All() (map[string]int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.load()
}

func (r *pidRegistry) load() (map[string]int, error) {
	pids := make(map[string]int)

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pids, nil
		}
		return pids, err
	}

	if err := json.Unmarshal(data, &pids); err != nil {
		return make(map[string]int), err
	}
	return pids, nil
}

func (r *pidRegistry) store(pids map[string]int) error {
	data, err := json.MarshalIndent(pids, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
