// Package processor runs journal files through section splitting, fact
// extraction and the fact store.
package processor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/hession/lifelog/internal/config"
	"github.com/hession/lifelog/internal/logger"
	"github.com/hession/lifelog/internal/markdown"
	"github.com/hession/lifelog/internal/memory"
)

// timestampLayout is how entry timestamps are stored in fact metadata
const timestampLayout = "2006-01-02T15:04:05"

// FactExtractor pulls facts out of one entry
type FactExtractor interface {
	ExtractFacts(ctx context.Context, sectionContext, content string, ts *time.Time) []string
}

// FactWriter persists one fact
type FactWriter interface {
	AddFact(ctx context.Context, text, userID string, metadata map[string]any) (*memory.AddResult, error)
}

// Options controls which files are read and how fast
type Options struct {
	Directories     []string
	Recursive       bool
	FileExtensions  []string
	ExcludePatterns []string
	BatchSize       int
	BatchDelay      time.Duration
	EntryDelay      time.Duration
	MinEntryLength  int
}

// OptionsFromConfig maps the processing section of cfg onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Directories:     cfg.MarkdownDirectories,
		Recursive:       cfg.Processing.Recursive,
		FileExtensions:  cfg.Processing.FileExtensions,
		ExcludePatterns: cfg.Processing.ExcludePatterns,
		BatchSize:       cfg.Processing.BatchSize,
		BatchDelay:      cfg.BatchDelay(),
		EntryDelay:      cfg.EntryDelay(),
		MinEntryLength:  cfg.Processing.MinEntryLength,
	}
}

// Counters totals one processing run
type Counters struct {
	FilesProcessed int
	TotalFacts     int
	AddedFacts     int
}

// SuccessRate is the share of extracted facts that were stored, in percent
func (c Counters) SuccessRate() float64 {
	if c.TotalFacts == 0 {
		return 0
	}
	return float64(c.AddedFacts) / float64(c.TotalFacts) * 100
}

// Processor drives the pipeline for single files and whole directories.
// Work is sequential: one entry, one LLM call, one fact write at a time.
type Processor struct {
	extractor  FactExtractor
	store      FactWriter
	opts       Options
	extensions []string
	excludes   []glob.Glob

	// Sleep waits between entries and batches; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Processor. It fails only on an invalid exclude pattern.
func New(extractor FactExtractor, store FactWriter, opts Options) (*Processor, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MinEntryLength <= 0 {
		opts.MinEntryLength = 10
	}

	excludes := make([]glob.Glob, 0, len(opts.ExcludePatterns))
	for _, pattern := range opts.ExcludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	extensions := lo.Map(opts.FileExtensions, func(ext string, _ int) string {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext
	})

	return &Processor{
		extractor:  extractor,
		store:      store,
		opts:       opts,
		extensions: lo.Uniq(lo.Compact(extensions)),
		excludes:   excludes,
		Sleep:      sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProcessFile extracts and stores the facts of one file. It returns the
// number of facts extracted and the number the store reported as created.
// Unreadable files contribute (0, 0).
func (p *Processor) ProcessFile(ctx context.Context, path, userID string) (total, added int) {
	start := time.Now()
	log := logger.WithFields(map[string]interface{}{"file": path, "user_id": userID})
	log.Info("Processing file")

	doc, err := loadDocument(path)
	if err != nil {
		log.Warnf("Skipping unreadable file: %v", err)
		return 0, 0
	}
	doc, meta, err := markdown.StripFrontmatter(doc)
	if err != nil {
		log.Warnf("Ignoring frontmatter: %v", err)
	} else if len(meta) > 0 {
		log.Debugf("Frontmatter keys: %v", lo.Keys(meta))
	}

	defer func() {
		log.WithFields(map[string]interface{}{
			"facts":    total,
			"added":    added,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Info("Finished file")
	}()

	for _, section := range markdown.ExtractSections(doc) {
		for _, entry := range markdown.ExtractEntries(section.Body) {
			content := strings.TrimSpace(entry.Content)
			if utf8.RuneCountInString(content) < p.opts.MinEntryLength {
				continue
			}

			facts := p.extractor.ExtractFacts(ctx, section.Heading, content, entry.Timestamp)
			total += len(facts)

			var metadata map[string]any
			if entry.Timestamp != nil {
				metadata = map[string]any{"timestamp": entry.Timestamp.Format(timestampLayout)}
			}
			for _, fact := range facts {
				result, err := p.store.AddFact(ctx, fact, userID, metadata)
				if err == nil && result.Added() {
					added++
				}
			}

			if err := p.Sleep(ctx, p.opts.EntryDelay); err != nil {
				log.Warnf("Stopping early: %v", err)
				return total, added
			}
		}
	}
	return total, added
}

// ProcessDirectories processes every matching file under the configured
// directories, pausing after each full batch of files.
func (p *Processor) ProcessDirectories(ctx context.Context, userID string) Counters {
	start := time.Now()
	var counters Counters

	files := p.collectFiles()
	logger.Info("Found %d files to process for user %s", len(files), userID)

	for i, path := range files {
		total, added := p.ProcessFile(ctx, path, userID)
		counters.FilesProcessed++
		counters.TotalFacts += total
		counters.AddedFacts += added

		if done := i + 1; done%p.opts.BatchSize == 0 && done < len(files) {
			logger.Info("Processed %d/%d files, pausing %v", done, len(files), p.opts.BatchDelay)
			if err := p.Sleep(ctx, p.opts.BatchDelay); err != nil {
				logger.Warn("Directory run interrupted: %v", err)
				break
			}
		}
	}

	logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"files":    counters.FilesProcessed,
		"facts":    counters.TotalFacts,
		"added":    counters.AddedFacts,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Directory run finished")
	return counters
}

// collectFiles lists matching files per directory in sorted order,
// directories in configured order, each file once.
func (p *Processor) collectFiles() []string {
	var all []string
	for _, dir := range p.opts.Directories {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logger.Warn("Skipping %s: not a readable directory", dir)
			continue
		}
		files, err := p.scanDirectory(dir)
		if err != nil {
			logger.Warn("Error scanning %s: %v", dir, err)
		}
		sort.Strings(files)
		all = append(all, files...)
	}
	return lo.Uniq(all)
}

func (p *Processor) scanDirectory(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Cannot access %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if !p.opts.Recursive || p.excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !p.hasExtension(path) || p.excluded(rel) {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (p *Processor) hasExtension(path string) bool {
	return lo.Contains(p.extensions, strings.ToLower(filepath.Ext(path)))
}

// excluded matches rel (slash separated) and its base name against the
// exclude patterns
func (p *Processor) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	return lo.ContainsBy(p.excludes, func(g glob.Glob) bool {
		return g.Match(rel) || g.Match(base)
	})
}
