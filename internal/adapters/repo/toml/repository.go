package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/ctxforge/ctxcache/internal/domain"
	"github.com/ctxforge/ctxcache/internal/ports"
)

const (
	transcriptFileMode = 0o600
	transcriptDirMode  = 0o700
	transcriptExt      = ".toml"
	tempFilePattern    = ".transcript-*.toml.tmp"
)

// Repository stores one TOML file per transcript under a single directory.
// Writes go through a temp file and rename, so a crash never leaves a
// half-written transcript behind.
type Repository struct {
	dir string
	mu  *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.TranscriptRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	loaded, err := LoadConfig(cfg)
	if err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(loaded.TranscriptsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve transcripts directory: %w", err)
	}
	dir = filepath.Clean(dir)

	return &Repository{dir: dir, mu: lockForPath(dir)}, nil
}

func (r *Repository) Load(ctx context.Context, name string) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.pathFor(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTranscriptNotFound, name)
		}
		return nil, fmt.Errorf("read transcript file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode transcript file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return nil, err
	}
	file.applyDefaults()

	return fromSchema(file)
}

func (r *Repository) Save(ctx context.Context, name string, conversation *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}
	if conversation == nil {
		return errors.New("conversation is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSchema(conversation)

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(r.pathFor(name), file)
}

func (r *Repository) List(ctx context.Context) ([]ports.TranscriptInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcripts directory: %w", err)
	}

	infos := make([]ports.TranscriptInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transcriptExt) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read transcript file: %w", err)
		}
		var file fileSchema
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode transcript file %s: %w", entry.Name(), err)
		}

		info := ports.TranscriptInfo{
			Name:  strings.TrimSuffix(entry.Name(), transcriptExt),
			Turns: len(file.Turns),
		}
		if stat, err := entry.Info(); err == nil {
			info.UpdatedAt = stat.ModTime()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos, nil
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.pathFor(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrTranscriptNotFound, name)
		}
		return fmt.Errorf("delete transcript file: %w", err)
	}

	return nil
}

func (r *Repository) pathFor(name string) string {
	return filepath.Join(r.dir, name+transcriptExt)
}

func validateName(name string) error {
	if name == "" {
		return errors.New("transcript name is empty")
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return fmt.Errorf("invalid transcript name %q", name)
		}
	}

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(path string, file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(path), transcriptDirMode); err != nil {
		return fmt.Errorf("create transcripts directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode transcript file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp transcript file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp transcript file: %w", err)
	}

	if err := tempFile.Chmod(transcriptFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp transcript file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp transcript file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace transcript file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(path, transcriptFileMode); err != nil {
		return fmt.Errorf("chmod transcript file: %w", err)
	}

	return nil
}
