package main

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// cameraIndex implements fuzzy.Source over "id title" strings
type cameraIndex struct {
	ids   []string
	lower []string
}

func newCameraIndex(ids []string, title func(id string) string) *cameraIndex {
	idx := &cameraIndex{ids: ids, lower: make([]string, len(ids))}
	for i, id := range ids {
		idx.lower[i] = strings.ToLower(id + " " + title(id))
	}
	return idx
}

// String returns the searchable text at index i (implements fuzzy.Source)
func (idx *cameraIndex) String(i int) string { return idx.lower[i] }

// Len returns the number of cameras (implements fuzzy.Source)
func (idx *cameraIndex) Len() int { return len(idx.ids) }

// selectCameras resolves comma separated patterns to camera IDs. An exact ID
// wins; otherwise the best fuzzy match over ID and title is taken. No
// patterns selects every camera.
func selectCameras(patterns string, idx *cameraIndex) ([]string, error) {
	if strings.TrimSpace(patterns) == "" {
		return append([]string(nil), idx.ids...), nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, pattern := range strings.Split(patterns, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if id, ok := exactID(pattern, idx.ids); ok {
			add(id)
			continue
		}
		matches := fuzzy.FindFrom(strings.ToLower(pattern), idx)
		if len(matches) == 0 {
			return nil, fmt.Errorf("no camera matches %q", pattern)
		}
		add(idx.ids[matches[0].Index])
	}
	return out, nil
}

func exactID(pattern string, ids []string) (string, bool) {
	for _, id := range ids {
		if strings.EqualFold(id, pattern) {
			return id, true
		}
	}
	return "", false
}
