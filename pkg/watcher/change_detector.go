package watcher

import (
	"fmt"

	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/persist"
	"github.com/ritzau/msedit/pkg/session"
)

// ChangeAnalysis describes what has to be reloaded after a batch of changes
type ChangeAnalysis struct {
	ReloadTypes        bool
	ReloadModelSystems bool
	ChangedFiles       []string
}

// AnalyzeChanges determines what to reload based on what changed
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{ChangedFiles: event.Paths}

	switch event.Type {
	case ChangeTypeCatalogue:
		// new hook sets can invalidate every loaded model system
		analysis.ReloadTypes = true
		analysis.ReloadModelSystems = true
	case ChangeTypeModelSystem:
		analysis.ReloadModelSystems = true
	}
	return analysis
}

// ReloadSession replaces a session's model system with its file's content.
// Sessions with unsaved edits are left alone, as are files whose digest
// matches the one the session last read or wrote (such as its own saves)
// unless force is set, e.g. after the catalogue changed. It reports whether
// a reload happened.
func ReloadSession(s *session.EditingSession, types model.TypeDescriber, force bool) (bool, error) {
	if s.Dirty() {
		logging.Warn("file changed on disk but session has unsaved edits; keeping session", "resource", s.Resource())
		return false, nil
	}

	var header model.Header
	s.View(func(ms *model.ModelSystem) { header = ms.Header() })
	if header.Path == "" {
		return false, fmt.Errorf("session %s has no file", s.Resource())
	}

	data, err := persist.ReadDocument(header.Path)
	if err != nil {
		return false, err
	}
	digest := persist.Digest(data)
	if !force && digest == header.Digest {
		logging.Trace("file matches session, skipping reload", "path", header.Path)
		return false, nil
	}

	ms, err := persist.Unmarshal(data, types)
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", header.Path, err)
	}
	h := ms.Header()
	h.Path = header.Path
	h.Digest = digest
	ms.SetHeader(h)
	s.Reload(ms)
	return true, nil
}
