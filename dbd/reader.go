// Package dbd reads Dinkum Binary Data (DBD) files produced by Slocum
// ocean gliders into typed, column-oriented arrays.
//
// A DBD file is an ASCII key/value prologue, an optional inline sensor
// list, a 16-byte known-bytes block fixing the byte order, and a run of
// 'd' data records terminated by 'X'. Each record carries a 2-bit code
// per sensor selecting absent, repeat-previous, or new-value handling.
// Compressed variants (*.?cd) wrap the whole layout in framed LZ4.
//
// ReadFile decodes one file; ReadFiles merges many files into a single
// union schema. ScanRosters and ScanHeaders run the cheap first pass
// only.
package dbd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gliderops/dinkum/compress"
	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/format"
)

// compressedSizeHint seeds the column capacity estimate for compressed
// streams, where the on-disk size says little about the decoded size.
const compressedSizeHint = 1 << 20

type config struct {
	cacheDir     string
	keep         mapset.Set[string]
	criteria     mapset.Set[string]
	skipMissions mapset.Set[string]
	keepMissions mapset.Set[string]
	skipFirst    bool
	repair       bool
	logger       *slog.Logger
}

// Option configures the reader entry points.
type Option func(*config)

// WithCacheDir sets the directory holding {crc}.cac / {crc}.ccc sensor
// caches. Factored files cannot be read without one, and unfactored
// files write their roster back into it.
func WithCacheDir(dir string) Option {
	return func(c *config) { c.cacheDir = dir }
}

// WithKeep restricts the output columns to the named sensors. No names
// keeps every available sensor.
func WithKeep(names ...string) Option {
	return func(c *config) { c.keep = mapset.NewSet(names...) }
}

// WithCriteria restricts the record-commit criteria to the named
// sensors: a record is kept only when one of them has a value. No names
// makes every sensor a criteria sensor.
func WithCriteria(names ...string) Option {
	return func(c *config) { c.criteria = mapset.NewSet(names...) }
}

// WithSkipMissions drops files whose mission_name is in names.
func WithSkipMissions(names ...string) Option {
	return func(c *config) { c.skipMissions = mapset.NewSet(names...) }
}

// WithKeepMissions drops files whose mission_name is not in names.
func WithKeepMissions(names ...string) Option {
	return func(c *config) { c.keepMissions = mapset.NewSet(names...) }
}

// WithSkipFirst drops the first record of a file; across a merge, of
// every contributing file after the first. Glider segments repeat the
// previous segment's final record at their start.
func WithSkipFirst(skip bool) Option {
	return func(c *config) { c.skipFirst = skip }
}

// WithRepair resynchronizes on stray bytes by scanning forward for the
// next record tag instead of stopping at the first one.
func WithRepair(repair bool) Option {
	return func(c *config) { c.repair = repair }
}

// WithLogger sets the logger for decode warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// stream is one opened file with its decompression layer, if any.
type stream struct {
	f        *os.File
	fr       *compress.FrameReader
	br       *bufio.Reader
	sizeHint int
}

func openStream(path string) (*stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &stream{f: f, sizeHint: compressedSizeHint}
	if format.IsCompressedPath(path) {
		s.fr = compress.NewFrameReader(f)
		s.br = bufio.NewReader(s.fr)
	} else {
		s.br = bufio.NewReader(f)
		if fi, err := f.Stat(); err == nil {
			s.sizeHint = int(fi.Size())
		}
	}

	return s, nil
}

func (s *stream) Close() error {
	if s.fr != nil {
		s.fr.Close()
	}

	return s.f.Close()
}

// FileResult is the outcome of a single-file read.
type FileResult struct {
	Result
	Header *Header
	Path   string
}

// ReadFile decodes one DBD file into typed columns.
//
// The pipeline is open (with transparent LZ4 expansion), header parse,
// roster resolution (inline, or cache lookup for factored files),
// keep/criteria masking, known-bytes probe, and record decode. When a
// cache directory is configured, an unfactored file's roster is written
// back as {crc}.cac for future factored files.
func ReadFile(path string, opts ...Option) (*FileResult, error) {
	cfg := newConfig(opts)

	s, err := openStream(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	hdr, err := parseHeader(s.br, path)
	if err != nil {
		return nil, err
	}

	roster, err := resolveRoster(s.br, hdr, cfg, path)
	if err != nil {
		return nil, err
	}
	if roster.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, errs.ErrNoSensors)
	}

	roster.ApplyKeep(cfg.keep)
	roster.ApplyCriteria(cfg.criteria)
	roster.AssignOutputIndices()

	kb, err := ReadKnownBytes(s.br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	res := decodeColumns(s.br, kb, roster, cfg.repair, s.sizeHint, cfg.logger)
	if cfg.skipFirst {
		res.dropFirst()
	}

	return &FileResult{Result: *res, Header: hdr, Path: path}, nil
}

// resolveRoster reads the inline sensor list of an unfactored file, or
// looks up the cache entry of a factored one.
func resolveRoster(br *bufio.Reader, hdr *Header, cfg *config, path string) (*Roster, error) {
	if hdr.Factored() {
		roster, err := loadCachedRoster(cfg.cacheDir, strings.ToLower(hdr.SensorListCRC()))
		if err != nil {
			return nil, err
		}

		return roster, nil
	}

	roster, err := parseRoster(br, hdr.NumSensors(), path, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	writeCachedRoster(cfg.cacheDir, strings.ToLower(hdr.SensorListCRC()), roster, cfg.logger)

	return roster, nil
}
