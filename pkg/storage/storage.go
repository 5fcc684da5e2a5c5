package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("file not found in storage root")

// Storage is the block storage collaborator of a stream: WAV files below a
// mount point (such as an SD card mounted on /sd) on any afero filesystem.
//
// Reads and writes on the returned files may be slow and bursty; callers
// impose their own deadlines.
type Storage struct {
	logger *slog.Logger
	uuid   uuid.UUID

	fs   afero.Fs
	root string
}

// New returns a Storage whose paths are resolved below root on fsys.
// An empty root uses fsys as is.
func New(fsys afero.Fs, root string) *Storage {
	uuid := uuid.New()
	root = strings.TrimRight(root, "/")
	if root != "" {
		fsys = afero.NewBasePathFs(fsys, root)
	}
	return &Storage{
		logger: slog.Default().With(
			"storage uuid", uuid,
			"root", root,
		),
		uuid: uuid,
		fs:   fsys,
		root: root,
	}
}

// NewOs returns a Storage on the host filesystem.
func NewOs(root string) *Storage {
	return New(afero.NewOsFs(), root)
}

func (s *Storage) Fs() afero.Fs {
	return s.fs
}

// Open opens name for reading. A name that does not exist below the root
// fails with ErrNotFound.
func (s *Storage) Open(name string) (afero.File, error) {
	name = clean(name)
	exists, err := afero.Exists(s.fs, name)
	if err != nil {
		s.logger.Error("could not stat file", "file", name, "err", err)
		return nil, fmt.Errorf("could not stat %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	f, err := s.fs.Open(name)
	if err != nil {
		s.logger.Error("could not open file", "file", name, "err", err)
		return nil, fmt.Errorf("could not open %s: %w", name, err)
	}
	s.logger.Debug("opened file", "file", name)
	return f, nil
}

// Create creates or truncates name for writing and seeking.
func (s *Storage) Create(name string) (afero.File, error) {
	name = clean(name)
	if dir := path.Dir(name); dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create %s: %w", dir, err)
		}
	}
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		s.logger.Error("could not create file", "file", name, "err", err)
		return nil, fmt.Errorf("could not create %s: %w", name, err)
	}
	s.logger.Debug("created file", "file", name)
	return f, nil
}

// ListWAV returns the names of the .wav files directly below the root.
func (s *Storage) ListWAV() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("could not list storage root: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode()&fs.ModeType != 0 {
			continue
		}
		if strings.EqualFold(path.Ext(info.Name()), ".wav") {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func clean(name string) string {
	return path.Clean("/" + name)
}
