package mindmap

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultFindResults caps Find when no limit is given
	DefaultFindResults = 50

	// MaxFolderDepth bounds the descent into nested folders
	MaxFolderDepth = 10
)

// genericPatterns locate MindMup files when no name fragment is given
var genericPatterns = []string{".mup", "mindmap", "mindmup", "mind map", "mind-map"}

// FindOptions selects MindMup files
type FindOptions struct {
	// FolderID restricts the search to a folder and its subfolders
	FolderID     string
	NameContains string
	MaxResults   int
}

func (o FindOptions) limit() int {
	if o.MaxResults <= 0 {
		return DefaultFindResults
	}
	return o.MaxResults
}

// Find returns MindMup files, newest first, de-duplicated by id.
//
// With a folder, the folder tree is walked breadth first. Otherwise the
// store is queried with name patterns derived from NameContains (or generic
// MindMup patterns), falling back to a MIME type query when nothing matches.
func (s *Service) Find(ctx context.Context, opts FindOptions) ([]remote.FileInfo, error) {
	var files []remote.FileInfo
	var err error
	if opts.FolderID != "" {
		files, err = s.findInFolder(ctx, opts)
	} else {
		files, err = s.findByPattern(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(files, func(a, b remote.FileInfo) int {
		return b.ModifiedTime.Compare(a.ModifiedTime)
	})
	if len(files) > opts.limit() {
		files = files[:opts.limit()]
	}
	return files, nil
}

// collector keeps MindMup files matching a name fragment, once per id
type collector struct {
	fragment string
	seen     map[string]bool
	files    []remote.FileInfo
}

func newCollector(fragment string) *collector {
	return &collector{fragment: strings.ToLower(fragment), seen: make(map[string]bool)}
}

func (c *collector) add(f remote.FileInfo) {
	if c.seen[f.ID] || !f.IsMindmup() {
		return
	}
	if c.fragment != "" && !strings.Contains(strings.ToLower(f.Name), c.fragment) {
		return
	}
	c.seen[f.ID] = true
	c.files = append(c.files, f)
}

func (s *Service) findByPattern(ctx context.Context, opts FindOptions) ([]remote.FileInfo, error) {
	patterns := genericPatterns
	if frag := strings.TrimSpace(opts.NameContains); frag != "" {
		patterns = []string{frag, frag + ".mup", frag + " mindmap"}
	}

	c := newCollector(opts.NameContains)
	for _, pattern := range patterns {
		listed, err := s.store.List(ctx, remote.Query{NameContains: pattern, MaxResults: remote.DefaultMaxResults})
		if err != nil {
			return nil, &types.FetchError{FileID: pattern, Err: err}
		}
		for _, f := range listed {
			c.add(f)
		}
	}

	if len(c.files) == 0 {
		listed, err := s.store.List(ctx, remote.Query{MimeTypes: []string{remote.MimeMindmup}, MaxResults: remote.DefaultMaxResults})
		if err != nil {
			return nil, &types.FetchError{FileID: remote.MimeMindmup, Err: err}
		}
		for _, f := range listed {
			c.add(f)
		}
	}

	s.logger.Debug("pattern search finished",
		zap.String("name_contains", opts.NameContains),
		zap.Int("found", len(c.files)))
	return c.files, nil
}

func (s *Service) findInFolder(ctx context.Context, opts FindOptions) ([]remote.FileInfo, error) {
	type folder struct {
		id    string
		depth int
	}

	c := newCollector(opts.NameContains)
	visited := map[string]bool{opts.FolderID: true}
	queue := []folder{{id: opts.FolderID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		listed, err := s.store.List(ctx, remote.Query{FolderID: cur.id, MaxResults: remote.DefaultMaxResults})
		if err != nil {
			return nil, &types.FetchError{FileID: cur.id, Err: err}
		}
		for _, f := range listed {
			if f.IsFolder() {
				if !visited[f.ID] && cur.depth+1 < MaxFolderDepth {
					visited[f.ID] = true
					queue = append(queue, folder{id: f.ID, depth: cur.depth + 1})
				}
				continue
			}
			c.add(f)
		}
	}
	return c.files, nil
}

// ListFolders returns folders visible in the store, newest first
func (s *Service) ListFolders(ctx context.Context, maxResults int) ([]remote.FileInfo, error) {
	folders, err := s.store.List(ctx, remote.Query{MimeTypes: []string{remote.MimeFolder}, MaxResults: maxResults})
	if err != nil {
		return nil, &types.FetchError{FileID: remote.MimeFolder, Err: err}
	}
	slices.SortStableFunc(folders, func(a, b remote.FileInfo) int {
		return b.ModifiedTime.Compare(a.ModifiedTime)
	})
	return folders, nil
}
