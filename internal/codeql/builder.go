package codeql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// buildLockTimeout bounds how long a build waits on another process
// already building the same database.
const buildLockTimeout = 30 * time.Minute

// DatabaseBuilder performs revision-gated database builds. Builds for the
// same (source, language) pair are serialized so two concurrent triggers
// cannot race the revision-check-then-build sequence.
type DatabaseBuilder struct {
	cli     *CLI
	storage *DatabaseStorage

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// BuildOutcome describes one EnsureDatabase call.
type BuildOutcome struct {
	DatabasePath string
	Revision     string
	CacheHit     bool
}

func NewDatabaseBuilder(cli *CLI, storage *DatabaseStorage) *DatabaseBuilder {
	return &DatabaseBuilder{
		cli:     cli,
		storage: storage,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureDatabase returns a usable database for (source, language), building
// one only when the source's current revision differs from the last
// analyzed one or no prior build exists.
func (b *DatabaseBuilder) EnsureDatabase(ctx context.Context, source CodeSource, language string) (BuildOutcome, error) {
	lock := b.lockFor(source.SourceID + ":" + language)
	lock.Lock()
	defer lock.Unlock()

	// A source need not be a git checkout (filesystem sources, exported
	// trees). A failed lookup yields an empty revision: the build proceeds
	// unconditionally and only the cache check is skipped.
	revision, err := b.cli.CurrentRevision(ctx, source.Path)
	if err != nil {
		slog.Warn("Revision lookup failed, building without cache",
			"source_id", source.SourceID, "path", source.Path, "error", err)
		revision = ""
	}

	dbPath := b.storage.DatabasePath(source.BusinessArea, source.Path, language)

	fileLock := NewBuildLock(dbPath)
	if err := fileLock.Acquire(ctx, buildLockTimeout); err != nil {
		return BuildOutcome{}, fmt.Errorf("build lock for %s/%s: %w", source.SourceID, language, err)
	}
	defer func() { _ = fileLock.Release() }()

	if revision != "" && revision == source.LastAnalyzedCommit &&
		b.storage.Exists(source.BusinessArea, source.Path, language) {
		slog.Info("Build cache hit, reusing stored database",
			"source_id", source.SourceID, "language", language, "revision", revision)
		return BuildOutcome{DatabasePath: dbPath, Revision: revision, CacheHit: true}, nil
	}

	slog.Info("Building code database",
		"source_id", source.SourceID, "language", language, "revision", revision)

	if err := b.cli.DatabaseCreate(ctx, dbPath, source.Path, language); err != nil {
		return BuildOutcome{}, err
	}

	return BuildOutcome{DatabasePath: dbPath, Revision: revision}, nil
}

func (b *DatabaseBuilder) lockFor(key string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[key] = lock
	}
	return lock
}
