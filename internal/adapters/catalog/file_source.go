package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout:
//
//	facilities:
//	  - id: WC-Norte-L0-1
//	    type: restroom
//	    num_servers: 8
type catalogFile struct {
	Facilities []*entities.Facility `yaml:"facilities"`
}

// FileSource reads facilities from a YAML file
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed catalog source
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

var _ repositories.FacilitySource = (*FileSource)(nil)

// Name identifies the source in logs
func (s *FileSource) Name() string {
	return "file"
}

// Path returns the watched file
func (s *FileSource) Path() string {
	return s.path
}

// Fetch loads the file. Entries without an id are skipped.
func (s *FileSource) Fetch(ctx context.Context) ([]*entities.Facility, error) {
	return LoadFile(s.path)
}

// LoadFile parses a catalog file
func LoadFile(path string) ([]*entities.Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML
func Parse(data []byte) ([]*entities.Facility, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	facilities := make([]*entities.Facility, 0, len(file.Facilities))
	for _, f := range file.Facilities {
		if f == nil {
			continue
		}
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			continue
		}
		f.FacilityType = entities.FacilityType(strings.ToLower(string(f.FacilityType)))
		facilities = append(facilities, f)
	}
	return facilities, nil
}

// Watch reloads the file on every write and hands the result to onChange.
// A file that fails to parse is logged and the previous catalog stays in use.
// It runs until ctx is cancelled.
func (s *FileSource) Watch(ctx context.Context, onChange func([]*entities.Facility)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return err
	}

	log.Info().Str("path", s.path).Msg("Watching facility catalog for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// atomic saves arrive as create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			facilities, err := LoadFile(s.path)
			if err != nil {
				log.Error().Err(err).Str("path", s.path).Msg("Catalog reload failed, keeping previous catalog")
				continue
			}

			log.Info().Str("path", s.path).Int("count", len(facilities)).Msg("Facility catalog reloaded")
			onChange(facilities)

			// the inode may have been replaced
			_ = watcher.Add(s.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Catalog watcher error")
		}
	}
}
