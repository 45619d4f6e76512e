package lifecycle

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgelab/jobmill/pkg/statefile"
)

// captureCollectFiles resolves the manifest's collect globs against the
// working directory and returns the matched relative paths, deduplicated
// and sorted. The state file itself is never collected.
func (j *Job) captureCollectFiles() ([]string, error) {
	if len(j.collectGlobs) == 0 {
		return nil, nil
	}

	fsys := os.DirFS(j.workDir)
	seen := make(map[string]struct{})
	for _, pattern := range j.collectGlobs {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("collect glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if m == statefile.FileName {
				continue
			}
			seen[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}
