package filter

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"
)

// persistedState holds the only two scalars that survive a restart. The rest
// of the filter state is rebuilt from the day files.
type persistedState struct {
	LastUpdateTimestamp time.Time `json:"last_update_timestamp"`
	LastUpdateType      string    `json:"last_update_type"`
}

func (f *Filter) loadState() {
	if f.opts.StatePath == "" {
		return
	}
	data, err := os.ReadFile(f.opts.StatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("filter state read failed: %v", err)
		}
		return
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("filter state decode failed, starting fresh: %v", err)
		return
	}
	f.lastUpdate = st.LastUpdateTimestamp
	f.lastUpdateType = st.LastUpdateType
}

func (f *Filter) saveState() {
	if f.opts.StatePath == "" {
		return
	}
	data, err := json.Marshal(persistedState{
		LastUpdateTimestamp: f.lastUpdate,
		LastUpdateType:      f.lastUpdateType,
	})
	if err != nil {
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.opts.StatePath), ".filterstate-*.json")
	if err != nil {
		log.Printf("filter state write failed: %v", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.Printf("filter state write failed: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), f.opts.StatePath); err != nil {
		os.Remove(tmp.Name())
		log.Printf("filter state write failed: %v", err)
	}
}
