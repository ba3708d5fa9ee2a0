package dbd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gliderops/dinkum/compress"
	"github.com/gliderops/dinkum/errs"
)

// Cache file extensions for factored sensor lists. Lookup tries plain
// text first, then the framed-LZ4 variant. The writer emits .cac only.
const (
	cacheExtPlain      = ".cac"
	cacheExtCompressed = ".ccc"
)

// loadCachedRoster resolves the sensor list of a factored file from
// {crc}.cac or {crc}.ccc in cacheDir.
func loadCachedRoster(cacheDir, crc string) (*Roster, error) {
	if cacheDir == "" || crc == "" {
		return nil, &errs.CacheMissError{CRC: crc, CacheDir: cacheDir}
	}

	plain := filepath.Join(cacheDir, crc+cacheExtPlain)
	if f, err := os.Open(plain); err == nil {
		defer f.Close()
		return parseCachedRoster(bufio.NewReader(f), plain)
	}

	packed := filepath.Join(cacheDir, crc+cacheExtCompressed)
	if f, err := os.Open(packed); err == nil {
		defer f.Close()
		fr := compress.NewFrameReader(f)
		defer fr.Close()

		return parseCachedRoster(bufio.NewReader(fr), packed)
	}

	return nil, &errs.CacheMissError{CRC: crc, CacheDir: cacheDir}
}

// parseCachedRoster reads sensor definition lines from a cache file,
// tolerating any number of key/value prologue lines before the first
// "s:" line. Only available sensors enter the roster.
func parseCachedRoster(br *bufio.Reader, path string) (*Roster, error) {
	roster := newRoster()

	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "s:") {
			s, perr := parseSensorLine(trimmed)
			if perr != nil {
				return nil, fmt.Errorf("%s: %w", path, perr)
			}
			if s.Available {
				roster.add(s)
			}
		}

		if err != nil {
			break
		}
	}

	return roster, nil
}

// writeCachedRoster serializes the roster of an unfactored file as
// {crc}.cac. An existing entry is left untouched; concurrent writers
// race on O_EXCL, not on file contents.
func writeCachedRoster(cacheDir, crc string, roster *Roster, logger *slog.Logger) {
	if cacheDir == "" || crc == "" || roster.Len() == 0 {
		return
	}

	path := filepath.Join(cacheDir, crc+cacheExtPlain)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !os.IsExist(err) && logger != nil {
			logger.Warn("sensor cache write failed", "path", path, "error", err)
		}

		return
	}
	defer f.Close()

	if _, err := f.Write(roster.serialize(crc)); err != nil && logger != nil {
		logger.Warn("sensor cache write failed", "path", path, "error", err)
	}
}
