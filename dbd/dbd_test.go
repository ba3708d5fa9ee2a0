package dbd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gliderops/dinkum/compress"
	"github.com/gliderops/dinkum/format"
)

// testSensor is one definition line of a fixture file.
type testSensor struct {
	avail bool
	size  int
	name  string
	units string
}

// testRecord is one data record: a 2-bit code per available sensor in
// roster order, plus the new values consumed in order by code-2 codes.
// Integer sensors take int values, float sensors float64.
type testRecord struct {
	codes  []int
	values []any
}

// testFile assembles a complete DBD byte stream.
type testFile struct {
	mission  string
	crc      string
	factored bool
	sensors  []testSensor
	records  []testRecord
	order    binary.ByteOrder // nil means little-endian
	noEnd    bool             // omit the 'X' terminator
	stray    map[int][]byte   // raw bytes injected before record i
}

func (tf *testFile) byteOrder() binary.ByteOrder {
	if tf.order != nil {
		return tf.order
	}

	return binary.LittleEndian
}

func (tf *testFile) availCount() int {
	n := 0
	for _, s := range tf.sensors {
		if s.avail {
			n++
		}
	}

	return n
}

func (tf *testFile) bytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	lines := []string{
		"dbd_label: DBD(dinkum_binary_data)file",
		"encoding_ver: 5",
		"num_ascii_tags: @TAGS@",
		"mission_name: " + tf.mission,
		"fileopen_time: Fri_Sep_13_10:00:00_2024",
		fmt.Sprintf("total_num_sensors: %d", len(tf.sensors)),
		fmt.Sprintf("sensors_per_cycle: %d", tf.availCount()),
		fmt.Sprintf("sensor_list_factored: %d", boolInt(tf.factored)),
	}
	if tf.crc != "" {
		lines = append(lines, "sensor_list_crc: "+tf.crc)
	}
	for _, line := range lines {
		line = strings.Replace(line, "@TAGS@", fmt.Sprint(len(lines)), 1)
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if !tf.factored {
		availIdx := 0
		for _, s := range tf.sensors {
			if s.avail {
				fmt.Fprintf(&buf, "s: T %d %d %d %s %s\n", availIdx, availIdx, s.size, s.name, s.units)
				availIdx++
			} else {
				fmt.Fprintf(&buf, "s: F -1 -1 %d %s %s\n", s.size, s.name, s.units)
			}
		}
	}

	buf.Write(knownBytesBlock(tf.byteOrder()))

	nAvail := tf.availCount()
	for ri, rec := range tf.records {
		if stray, ok := tf.stray[ri]; ok {
			buf.Write(stray)
		}

		require.Len(t, rec.codes, nAvail)
		buf.WriteByte(format.TagData)

		bits := make([]byte, (nAvail+3)/4)
		for i, code := range rec.codes {
			bits[i>>2] |= byte(code) << uint(6-(i&3)*2)
		}
		buf.Write(bits)

		vi := 0
		si := 0
		for _, s := range tf.sensors {
			if !s.avail {
				continue
			}
			if rec.codes[si] == 2 {
				tf.writeValue(t, &buf, s.size, rec.values[vi])
				vi++
			}
			si++
		}
	}

	if !tf.noEnd {
		buf.WriteByte(format.TagEnd)
	}

	return buf.Bytes()
}

func (tf *testFile) writeValue(t *testing.T, buf *bytes.Buffer, size int, v any) {
	t.Helper()

	order := tf.byteOrder()
	switch size {
	case 1:
		buf.WriteByte(byte(int8(v.(int))))
	case 2:
		var b [2]byte
		order.PutUint16(b[:], uint16(int16(v.(int))))
		buf.Write(b[:])
	case 4:
		var b [4]byte
		order.PutUint32(b[:], math.Float32bits(float32(v.(float64))))
		buf.Write(b[:])
	case 8:
		var b [8]byte
		order.PutUint64(b[:], math.Float64bits(v.(float64)))
		buf.Write(b[:])
	default:
		t.Fatalf("bad sensor size %d", size)
	}
}

// knownBytesBlock renders the 16-byte probe block in the given order.
func knownBytesBlock(order binary.ByteOrder) []byte {
	block := make([]byte, 0, format.KnownBytesLen)
	block = append(block, format.KnownTagSensor, format.KnownTagAlign)

	var b16 [2]byte
	order.PutUint16(b16[:], uint16(format.KnownInt16))
	block = append(block, b16[:]...)

	var b32 [4]byte
	order.PutUint32(b32[:], math.Float32bits(format.KnownFloat32))
	block = append(block, b32[:]...)

	var b64 [8]byte
	order.PutUint64(b64[:], math.Float64bits(format.KnownFloat64))
	block = append(block, b64[:]...)

	return block
}

func boolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// writeTestFile drops data into dir under name and returns the path.
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

// writeCompressedFile frames data through the LZ4 frame writer first.
func writeCompressedFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	var buf bytes.Buffer
	fw := compress.NewFrameWriter(&buf)
	_, err := fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	return writeTestFile(t, dir, name, buf.Bytes())
}

// quietLogger suppresses expected decode warnings in tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
