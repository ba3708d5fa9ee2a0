package dbd

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gliderops/dinkum/errs"
)

// headerLineLimit bounds header parsing against files with no
// recognizable prologue at all.
const headerLineLimit = 1000

// defaultASCIITags is the assumed header line count until the
// num_ascii_tags key is seen.
const defaultASCIITags = 10

// Header is the ASCII key/value prologue of a DBD file. Keys are kept in
// insertion order.
type Header struct {
	keys   []string
	values map[string]string
	path   string
}

// parseHeader consumes the ASCII prologue from br. The line budget
// starts at defaultASCIITags and is updated when num_ascii_tags is
// parsed; parsing also stops at a line without a colon or with
// non-ASCII bytes.
func parseHeader(br *bufio.Reader, path string) (*Header, error) {
	hdr := &Header{
		values: make(map[string]string),
		path:   path,
	}

	maxLines := defaultASCIITags
	for range headerLineLimit {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if !isASCII(line) {
			break
		}

		rawKey, rawValue, found := strings.Cut(line, ":")
		if !found {
			break
		}
		key := strings.TrimSpace(rawKey)
		value := strings.TrimSpace(rawValue)
		hdr.set(key, value)

		if key == "num_ascii_tags" {
			if n, err := strconv.Atoi(value); err == nil {
				maxLines = n
			}
		}

		if len(hdr.keys) >= maxLines {
			break
		}
		if err != nil {
			break
		}
	}

	if hdr.IsEmpty() {
		return hdr, fmt.Errorf("%s: %w", path, errs.ErrEmptyHeader)
	}

	return hdr, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7E {
			return false
		}
	}

	return true
}

func (h *Header) set(key, value string) {
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value for key, or "" when absent.
func (h *Header) Get(key string) string {
	return h.values[key]
}

// GetInt returns the value for key parsed as an integer, or def when the
// key is absent or unparsable.
func (h *Header) GetInt(key string, def int) int {
	value := h.Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}

	return n
}

// Keys returns the header keys in insertion order.
func (h *Header) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)

	return out
}

// IsEmpty reports whether no key/value lines were parsed.
func (h *Header) IsEmpty() bool { return len(h.keys) == 0 }

// Path returns the path the header was read from.
func (h *Header) Path() string { return h.path }

// MissionName returns the mission_name value.
func (h *Header) MissionName() string { return h.Get("mission_name") }

// NumSensors returns total_num_sensors: the count of sensor definition
// lines (available and absent) in an unfactored file.
func (h *Header) NumSensors() int { return h.GetInt("total_num_sensors", 0) }

// SensorsPerCycle returns sensors_per_cycle.
func (h *Header) SensorsPerCycle() int { return h.GetInt("sensors_per_cycle", 0) }

// SensorListCRC returns the sensor_list_crc value as stored.
func (h *Header) SensorListCRC() string { return h.Get("sensor_list_crc") }

// Factored reports whether the sensor list lives in an external cache
// file rather than inline. Older files spell the key "factored".
func (h *Header) Factored() bool {
	if h.Get("sensor_list_factored") != "" {
		return h.GetInt("sensor_list_factored", 0) != 0
	}

	return h.GetInt("factored", 0) != 0
}

// FileopenTime returns the fileopen_time value.
func (h *Header) FileopenTime() string { return h.Get("fileopen_time") }

// EncodingVer returns the encoding_ver value.
func (h *Header) EncodingVer() string { return h.Get("encoding_ver") }

// FullFilename returns the full_filename value.
func (h *Header) FullFilename() string { return h.Get("full_filename") }

// The8x3Filename returns the the8x3_filename value.
func (h *Header) The8x3Filename() string { return h.Get("the8x3_filename") }

// FilenameExtension returns the filename_extension value.
func (h *Header) FilenameExtension() string { return h.Get("filename_extension") }

// ProcessMission reports whether this file passes the mission filters:
// the mission must not be in skip, and when keep is non-empty it must be
// in keep. Matching is case-sensitive on the stored mission name.
func (h *Header) ProcessMission(skip, keep mapset.Set[string]) bool {
	mission := h.MissionName()

	if skip != nil && skip.Contains(mission) {
		return false
	}
	if keep != nil && keep.Cardinality() > 0 {
		return keep.Contains(mission)
	}

	return true
}
