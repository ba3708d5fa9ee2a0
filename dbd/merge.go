package dbd

import (
	"bufio"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/format"
	"github.com/gliderops/dinkum/internal/hash"
)

// sensorsMap accumulates the rosters seen across a merge, keyed by
// sensor-list CRC, and maintains their union. Files sharing a CRC share
// one roster entry. Rosters from files without a CRC are keyed by an
// xxHash64 of their serialized lines so identical lists still share.
type sensorsMap struct {
	cacheDir string
	logger   *slog.Logger
	rosters  map[string]*Roster
	union    *Roster
}

func newSensorsMap(cacheDir string, logger *slog.Logger) *sensorsMap {
	return &sensorsMap{
		cacheDir: cacheDir,
		logger:   logger,
		rosters:  make(map[string]*Roster),
		union:    newRoster(),
	}
}

// resolve returns the map key for the file's roster, reading the inline
// list or the cache entry when the CRC is new.
func (m *sensorsMap) resolve(br *bufio.Reader, hdr *Header, path string) (string, error) {
	key := strings.ToLower(hdr.SensorListCRC())
	if key != "" {
		if _, ok := m.rosters[key]; ok {
			return key, nil
		}
	}

	var roster *Roster
	var err error
	if hdr.Factored() {
		roster, err = loadCachedRoster(m.cacheDir, key)
		if err != nil {
			return "", err
		}
	} else {
		roster, err = parseRoster(br, hdr.NumSensors(), path, m.logger)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		if key == "" {
			key = fmt.Sprintf("x%016x", hash.Bytes(roster.serialize("")))
			if _, ok := m.rosters[key]; ok {
				return key, nil
			}
		} else {
			writeCachedRoster(m.cacheDir, key, roster, m.logger)
		}
	}

	if err := m.mergeIntoUnion(roster, path); err != nil {
		return "", err
	}
	m.rosters[key] = roster

	return key, nil
}

// mergeIntoUnion adds the roster's sensors to the union. The union keeps
// first-occurrence units; a byte-width conflict for the same name is a
// format error.
func (m *sensorsMap) mergeIntoUnion(roster *Roster, path string) error {
	for i := 0; i < roster.Len(); i++ {
		s := roster.At(i)
		if existing := m.union.Find(s.Name); existing != nil {
			if existing.Size != s.Size {
				return fmt.Errorf("%s: sensor %s: %w (%d vs %d)",
					path, s.Name, errs.ErrSensorSizeMismatch, existing.Size, s.Size)
			}
			continue
		}

		u := *s
		u.Keep = true
		u.Criteria = true
		u.OutputIndex = -1
		m.union.add(u)
	}

	return nil
}

// setUpForData applies the keep/criteria masks to the union, numbers the
// kept union sensors, and re-indexes every per-file roster so each of
// its sensors carries the union's output index for its name. This
// re-indexing is what projects differently-ordered file rosters into one
// column schema.
func (m *sensorsMap) setUpForData(keep, criteria mapset.Set[string]) {
	m.union.ApplyKeep(keep)
	m.union.ApplyCriteria(criteria)
	m.union.AssignOutputIndices()

	for _, roster := range m.rosters {
		for i := 0; i < roster.Len(); i++ {
			s := roster.At(i)
			u := m.union.Find(s.Name)
			s.Keep = u.Keep
			s.Criteria = u.Criteria
			s.OutputIndex = u.OutputIndex
		}
	}
}

// MultiResult is the outcome of a multi-file merge.
type MultiResult struct {
	Result
	NFiles int
}

// ReadFiles reads the given DBD files into one union-shaped result.
//
// Paths are processed in lexicographic order. Pass 1 scans each file's
// header and roster and builds the union schema; files that fail to
// open, have no header, or are filtered out by mission are skipped
// silently. Pass 2 re-opens each remaining file, decodes it against its
// union-aligned roster, and concatenates the per-file rows into
// fill-initialized union columns, matched by sensor name.
func ReadFiles(paths []string, opts ...Option) (*MultiResult, error) {
	cfg := newConfig(opts)

	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	smap := newSensorsMap(cfg.cacheDir, cfg.logger)

	type fileEntry struct {
		path string
		key  string
	}
	var valid []fileEntry

	for _, path := range sorted {
		s, err := openStream(path)
		if err != nil {
			continue
		}

		hdr, err := parseHeader(s.br, path)
		if err != nil || !hdr.ProcessMission(cfg.skipMissions, cfg.keepMissions) {
			s.Close()
			continue
		}

		key, err := smap.resolve(s.br, hdr, path)
		s.Close()
		if err != nil {
			return nil, err
		}
		valid = append(valid, fileEntry{path: path, key: key})
	}

	if len(valid) == 0 {
		return &MultiResult{Result: Result{Columns: []Column{}, SensorInfo: []SensorInfo{}}}, nil
	}

	smap.setUpForData(cfg.keep, cfg.criteria)
	unionInfo := smap.union.OutputInfo()

	unionIndex := make(map[string]int, len(unionInfo))
	for i, info := range unionInfo {
		unionIndex[info.Name] = i
	}

	var contrib []*Result
	total := 0
	contributed := false

	for _, fe := range valid {
		s, err := openStream(fe.path)
		if err != nil {
			continue
		}

		hdr, err := parseHeader(s.br, fe.path)
		if err != nil {
			s.Close()
			continue
		}

		// The roster is already resolved; only reposition the stream.
		if !hdr.Factored() {
			skipRosterLines(s.br, hdr.NumSensors())
		}

		kb, err := ReadKnownBytes(s.br)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", fe.path, err)
		}

		res := decodeColumns(s.br, kb, smap.rosters[fe.key], cfg.repair, s.sizeHint, cfg.logger)
		s.Close()

		if res.NRecords > 0 {
			// The first row of each later segment repeats the previous
			// segment's last row; the first contributor keeps all rows.
			if contributed && cfg.skipFirst {
				res.dropFirst()
			}
			contributed = true
		}
		total += res.NRecords
		contrib = append(contrib, res)
	}

	unionColumns := make([]Column, len(unionInfo))
	for i, info := range unionInfo {
		kind, _ := format.KindForSize(info.Size)
		unionColumns[i] = newColumn(kind, total)
	}

	offset := 0
	for _, res := range contrib {
		if res.NRecords == 0 {
			continue
		}
		for ci := range res.Columns {
			info := res.SensorInfo[ci]
			if info.Name == "" {
				continue
			}
			ui, ok := unionIndex[info.Name]
			if !ok {
				continue
			}
			unionColumns[ui].copyFrom(&res.Columns[ci], 0, offset, res.NRecords)
		}
		offset += res.NRecords
	}

	return &MultiResult{
		Result: Result{Columns: unionColumns, SensorInfo: unionInfo, NRecords: total},
		NFiles: len(valid),
	}, nil
}

// RosterScan is the outcome of a pass-1-only scan: the union schema the
// same paths would produce through ReadFiles, without decoding data.
type RosterScan struct {
	SensorInfo []SensorInfo
	NFiles     int
}

// ScanRosters runs the merger's first pass only: headers and rosters are
// resolved and unified, no data records are decoded.
func ScanRosters(paths []string, opts ...Option) (*RosterScan, error) {
	cfg := newConfig(opts)

	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	smap := newSensorsMap(cfg.cacheDir, cfg.logger)
	nFiles := 0

	for _, path := range sorted {
		s, err := openStream(path)
		if err != nil {
			continue
		}

		hdr, err := parseHeader(s.br, path)
		if err != nil || !hdr.ProcessMission(cfg.skipMissions, cfg.keepMissions) {
			s.Close()
			continue
		}

		_, err = smap.resolve(s.br, hdr, path)
		s.Close()
		if err != nil {
			return nil, err
		}
		nFiles++
	}

	smap.setUpForData(cfg.keep, cfg.criteria)

	return &RosterScan{SensorInfo: smap.union.OutputInfo(), NFiles: nFiles}, nil
}

// HeaderInfo is one file's identity from a header sweep.
type HeaderInfo struct {
	Path          string
	MissionName   string
	SensorListCRC string
}

// ScanHeaders parses only the headers of the given paths, in
// lexicographic order, returning identity fields for each file that has
// a header and passes the mission filters.
func ScanHeaders(paths []string, opts ...Option) ([]HeaderInfo, error) {
	cfg := newConfig(opts)

	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	infos := make([]HeaderInfo, 0, len(sorted))
	for _, path := range sorted {
		s, err := openStream(path)
		if err != nil {
			continue
		}

		hdr, err := parseHeader(s.br, path)
		s.Close()
		if err != nil || !hdr.ProcessMission(cfg.skipMissions, cfg.keepMissions) {
			continue
		}

		infos = append(infos, HeaderInfo{
			Path:          path,
			MissionName:   hdr.MissionName(),
			SensorListCRC: hdr.SensorListCRC(),
		})
	}

	return infos, nil
}
