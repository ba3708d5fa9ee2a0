package dbd

import (
	"bufio"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/format"
)

// Sensor describes one available sensor of a file's roster.
type Sensor struct {
	Name  string
	Units string
	Size  int
	Kind  format.SensorKind

	// Available mirrors the T flag of the definition line. Rosters only
	// ever hold available sensors; the flag survives for serialization.
	Available bool

	// FileIndex and StorageIndex are carried from the sensor definition
	// line. Header-bit interpretation uses roster position, not these.
	FileIndex    int
	StorageIndex int

	Keep     bool
	Criteria bool

	// OutputIndex is the sensor's column position in the result schema;
	// -1 until assigned, and only assigned for kept sensors.
	OutputIndex int
}

// parseSensorLine parses one "s: <T|F> <file_index> <storage_index>
// <size> <name> <units>" definition line.
func parseSensorLine(line string) (Sensor, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 || fields[0] != "s:" {
		return Sensor{}, fmt.Errorf("%w: %q", errs.ErrInvalidSensorLine, line)
	}

	fileIndex, err := strconv.Atoi(fields[2])
	if err != nil {
		return Sensor{}, fmt.Errorf("%w: bad file index in %q", errs.ErrInvalidSensorLine, line)
	}
	storageIndex, err := strconv.Atoi(fields[3])
	if err != nil {
		return Sensor{}, fmt.Errorf("%w: bad storage index in %q", errs.ErrInvalidSensorLine, line)
	}
	size, err := strconv.Atoi(fields[4])
	if err != nil {
		return Sensor{}, fmt.Errorf("%w: bad size in %q", errs.ErrInvalidSensorLine, line)
	}

	s := Sensor{
		Name:         fields[5],
		Units:        fields[6],
		Size:         size,
		Available:    fields[1] == "T",
		FileIndex:    fileIndex,
		StorageIndex: storageIndex,
		Keep:         true,
		Criteria:     true,
		OutputIndex:  -1,
	}

	if s.Available {
		kind, ok := format.KindForSize(size)
		if !ok {
			return Sensor{}, fmt.Errorf("%w: %d for sensor %s", errs.ErrUnknownSensorSize, size, s.Name)
		}
		s.Kind = kind
	}

	return s, nil
}

// line serializes the sensor back into definition-line form.
func (s *Sensor) line() string {
	avail := "F"
	if s.Available {
		avail = "T"
	}

	return fmt.Sprintf("s: %s %d %d %d %s %s", avail, s.FileIndex, s.StorageIndex, s.Size, s.Name, s.Units)
}

// Roster is the ordered list of a file's available sensors. Sensors
// flagged F never enter a roster: the data stream carries bytes only for
// available sensors, and admitting an absent sensor would shift the
// header-bit position of every sensor after it.
type Roster struct {
	sensors []Sensor
	byName  map[string]int
}

func newRoster() *Roster {
	return &Roster{byName: make(map[string]int)}
}

// add appends an available sensor. Lines flagged F must be dropped by
// the caller before this point.
func (r *Roster) add(s Sensor) {
	r.byName[s.Name] = len(r.sensors)
	r.sensors = append(r.sensors, s)
}

// Len returns the number of available sensors.
func (r *Roster) Len() int { return len(r.sensors) }

// At returns the sensor at roster position i.
func (r *Roster) At(i int) *Sensor { return &r.sensors[i] }

// Find returns the sensor with the given name, or nil.
func (r *Roster) Find(name string) *Sensor {
	i, ok := r.byName[name]
	if !ok {
		return nil
	}

	return &r.sensors[i]
}

// NToStore returns the number of kept sensors.
func (r *Roster) NToStore() int {
	n := 0
	for i := range r.sensors {
		if r.sensors[i].Keep {
			n++
		}
	}

	return n
}

// HeaderBytes returns the per-record header-bit byte count: one 2-bit
// code per sensor, four codes per byte.
func (r *Roster) HeaderBytes() int { return (len(r.sensors) + 3) / 4 }

// ApplyKeep marks sensors named in names as kept. A nil or empty set
// keeps every sensor.
func (r *Roster) ApplyKeep(names mapset.Set[string]) {
	all := names == nil || names.Cardinality() == 0
	for i := range r.sensors {
		r.sensors[i].Keep = all || names.Contains(r.sensors[i].Name)
	}
}

// ApplyCriteria marks sensors named in names as criteria sensors. A nil
// or empty set makes every sensor a criteria sensor.
func (r *Roster) ApplyCriteria(names mapset.Set[string]) {
	all := names == nil || names.Cardinality() == 0
	for i := range r.sensors {
		r.sensors[i].Criteria = all || names.Contains(r.sensors[i].Name)
	}
}

// AssignOutputIndices numbers the kept sensors densely in roster order
// and clears the index of non-kept sensors.
func (r *Roster) AssignOutputIndices() {
	idx := 0
	for i := range r.sensors {
		if r.sensors[i].Keep {
			r.sensors[i].OutputIndex = idx
			idx++
		} else {
			r.sensors[i].OutputIndex = -1
		}
	}
}

// SensorInfo describes one output column.
type SensorInfo struct {
	Name  string
	Units string
	Size  int
}

// OutputInfo returns the kept sensors' metadata ordered by output index.
func (r *Roster) OutputInfo() []SensorInfo {
	out := make([]SensorInfo, r.NToStore())
	for i := range r.sensors {
		s := &r.sensors[i]
		if s.Keep && s.OutputIndex >= 0 && s.OutputIndex < len(out) {
			out[s.OutputIndex] = SensorInfo{Name: s.Name, Units: s.Units, Size: s.Size}
		}
	}

	return out
}

// serialize renders the roster in cache-file form: a short key/value
// prologue followed by the sensor definition lines.
func (r *Roster) serialize(crc string) []byte {
	var b strings.Builder
	if crc != "" {
		fmt.Fprintf(&b, "sensor_list_crc: %s\n", crc)
	}
	fmt.Fprintf(&b, "total_num_sensors: %d\n", len(r.sensors))
	for i := range r.sensors {
		b.WriteString(r.sensors[i].line())
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

// parseRoster reads count sensor definition lines from br, keeping only
// those flagged available. It peeks before each line so a count mismatch
// never consumes bytes of the known-bytes block that follows.
func parseRoster(br *bufio.Reader, count int, path string, logger *slog.Logger) (*Roster, error) {
	roster := newRoster()

	parsed := 0
	for range count {
		peek, err := br.Peek(2)
		if err != nil || string(peek) != "s:" {
			break
		}

		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		parsed++

		s, perr := parseSensorLine(strings.TrimSpace(line))
		if perr != nil {
			return nil, perr
		}
		if s.Available {
			roster.add(s)
		}
		if err != nil {
			break
		}
	}

	if parsed != count && logger != nil {
		logger.Warn("sensor line count mismatch",
			"path", path, "expected", count, "parsed", parsed)
	}

	return roster, nil
}

// skipRosterLines advances br past the inline sensor definition lines of
// an unfactored file without parsing them.
func skipRosterLines(br *bufio.Reader, count int) {
	for range count {
		peek, err := br.Peek(2)
		if err != nil || string(peek) != "s:" {
			return
		}
		if _, err := br.ReadString('\n'); err != nil {
			return
		}
	}
}
