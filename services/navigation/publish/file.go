package publish

import (
	"context"
	"encoding/json"
	"sync"

	goutils "go.viam.com/utils"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/macro-rover/navigator/services/navigation"
)

// FileConfig describes a rotating trajectory file.
type FileConfig struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *FileConfig) Validate(path string) error {
	if cfg.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "path")
	}
	return nil
}

// File appends every payload as one JSON line. Old files are rotated out by size.
type File struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *json.Encoder
}

// NewFile opens (lazily) the trajectory file.
func NewFile(cfg FileConfig) (*File, error) {
	if err := cfg.Validate("publish.file"); err != nil {
		return nil, err
	}
	out := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &File{out: out, enc: json.NewEncoder(out)}, nil
}

// Publish writes payload as a line of JSON.
func (f *File) Publish(ctx context.Context, payload navigation.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(payload)
}

// Close closes the current file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}
