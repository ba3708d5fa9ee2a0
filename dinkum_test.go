package dinkum

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gliderops/dinkum/dbd"
)

// minimalSegment is a one-sensor little-endian file with two records.
func minimalSegment(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("num_ascii_tags: 4\n")
	buf.WriteString("mission_name: micro.mi\n")
	buf.WriteString("total_num_sensors: 1\n")
	buf.WriteString("sensor_list_factored: 0\n")
	buf.WriteString("s: T 0 0 1 m_flag nodim\n")

	buf.WriteString("sa")
	var b [8]byte
	binary.LittleEndian.PutUint16(b[:2], 0x1234)
	buf.Write(b[:2])
	binary.LittleEndian.PutUint32(b[:4], math.Float32bits(123.456))
	buf.Write(b[:4])
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(123456789.12345))
	buf.Write(b[:])

	buf.Write([]byte{'d', 0x80, 0x05}) // new value 5
	buf.Write([]byte{'d', 0x80, 0x07}) // new value 7
	buf.WriteByte('X')

	path := filepath.Join(t.TempDir(), "seg.dbd")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestReadSkipsFirstByDefault(t *testing.T) {
	path := minimalSegment(t)

	res, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 1, res.NRecords)
	require.Equal(t, []int8{7}, res.Columns[0].Int8())
	require.Equal(t, "m_flag", res.SensorInfo[0].Name)
}

func TestReadExplicitOptionWins(t *testing.T) {
	path := minimalSegment(t)

	res, err := Read(path, dbd.WithSkipFirst(false))
	require.NoError(t, err)
	require.Equal(t, 2, res.NRecords)
	require.Equal(t, []int8{5, 7}, res.Columns[0].Int8())
}

func TestReadAll(t *testing.T) {
	path := minimalSegment(t)

	res, err := ReadAll([]string{path})
	require.NoError(t, err)
	require.Equal(t, 1, res.NFiles)
	require.Equal(t, 2, res.NRecords)
}

func TestScans(t *testing.T) {
	path := minimalSegment(t)

	scan, err := ScanRosters([]string{path})
	require.NoError(t, err)
	require.Equal(t, 1, scan.NFiles)
	require.Equal(t, "m_flag", scan.SensorInfo[0].Name)

	infos, err := ScanHeaders([]string{path})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "micro.mi", infos[0].MissionName)
}
