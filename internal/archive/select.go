package archive

import (
	"fmt"
	"path"
	"strings"
)

// Selection narrows an item's file listing down to the files a transfer
// should fetch. An explicit Files list bypasses all other filters.
type Selection struct {
	Files              []string
	Glob               string
	Format             string
	Sources            []string
	ExcludeSources     []string
	ExcludeGlob        string
	IncludeDerivatives bool
}

// SelectFiles applies the selection to an item listing. Requesting a file
// the item does not have is an error; filter combinations that match
// nothing are not.
func SelectFiles(files []ItemFile, sel Selection) ([]ItemFile, error) {
	if len(sel.Files) > 0 {
		byName := make(map[string]ItemFile, len(files))
		for _, f := range files {
			byName[f.Name] = f
		}
		out := make([]ItemFile, 0, len(sel.Files))
		for _, name := range sel.Files {
			f, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("file %q not present in item", name)
			}
			out = append(out, f)
		}
		return out, nil
	}

	var out []ItemFile
	for _, f := range files {
		if strings.HasPrefix(f.Name, "history/") {
			continue
		}
		if !sourceAllowed(f.Source, sel) {
			continue
		}
		if sel.Glob != "" {
			matched, err := path.Match(sel.Glob, f.Name)
			if err != nil {
				return nil, fmt.Errorf("bad glob %q: %w", sel.Glob, err)
			}
			if !matched {
				continue
			}
		}
		if sel.Format != "" && !strings.EqualFold(sel.Format, f.Format) {
			continue
		}
		if sel.ExcludeGlob != "" {
			matched, err := path.Match(sel.ExcludeGlob, f.Name)
			if err != nil {
				return nil, fmt.Errorf("bad exclude glob %q: %w", sel.ExcludeGlob, err)
			}
			if matched {
				continue
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func sourceAllowed(source string, sel Selection) bool {
	if len(sel.Sources) > 0 {
		for _, allowed := range sel.Sources {
			if strings.EqualFold(source, allowed) {
				return true
			}
		}
		return false
	}
	for _, excluded := range sel.ExcludeSources {
		if strings.EqualFold(source, excluded) {
			return false
		}
	}
	if len(sel.ExcludeSources) == 0 && !sel.IncludeDerivatives && strings.EqualFold(source, "derivative") {
		return false
	}
	return true
}

// TotalSize sums the known sizes of the given files. The second return is
// false when any file is missing a size, meaning the sum undercounts.
func TotalSize(files []ItemFile) (int64, bool) {
	var total int64
	complete := true
	for _, f := range files {
		if f.Size == nil {
			complete = false
			continue
		}
		total += *f.Size
	}
	return total, complete
}
