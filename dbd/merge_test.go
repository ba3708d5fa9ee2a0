package dbd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/format"
)

// unionPair builds two files with overlapping rosters: P carries x and
// y, Q carries y and z, with y first in Q to exercise re-indexing.
func unionPair(t *testing.T, dir string) (string, string) {
	t.Helper()

	p := &testFile{
		mission: "deep.mi",
		crc:     "AAAA0001",
		sensors: []testSensor{
			{avail: true, size: 2, name: "x", units: "nodim"},
			{avail: true, size: 4, name: "y", units: "m"},
		},
		records: []testRecord{
			{codes: []int{2, 2}, values: []any{10, 1.5}},
			{codes: []int{2, 2}, values: []any{11, 2.5}},
		},
	}
	q := &testFile{
		mission: "deep.mi",
		crc:     "AAAA0002",
		sensors: []testSensor{
			{avail: true, size: 4, name: "y", units: "m"},
			{avail: true, size: 1, name: "z", units: "bool"},
		},
		records: []testRecord{
			{codes: []int{2, 2}, values: []any{2.5, 1}},
			{codes: []int{2, 2}, values: []any{3.5, 0}},
			{codes: []int{2, 2}, values: []any{4.5, 1}},
		},
	}

	return writeTestFile(t, dir, "p.dbd", p.bytes(t)),
		writeTestFile(t, dir, "q.dbd", q.bytes(t))
}

func TestReadFilesUnion(t *testing.T) {
	dir := t.TempDir()
	pPath, qPath := unionPair(t, dir)

	// Pass the paths out of order; the merger sorts them.
	res, err := ReadFiles([]string{qPath, pPath}, WithSkipFirst(true))
	require.NoError(t, err)
	require.Equal(t, 2, res.NFiles)

	// P contributes 2 rows, Q drops its duplicated first row.
	require.Equal(t, 4, res.NRecords)
	require.Len(t, res.Columns, 3)

	// Union order is first-occurrence order: x, y from P, then z from Q.
	require.Equal(t, "x", res.SensorInfo[0].Name)
	require.Equal(t, "y", res.SensorInfo[1].Name)
	require.Equal(t, "z", res.SensorInfo[2].Name)

	x := res.Columns[0].Int16()
	require.Equal(t, []int16{10, 11, format.FillInt16, format.FillInt16}, x)

	y := res.Columns[1].Float32()
	require.Equal(t, []float32{1.5, 2.5, 3.5, 4.5}, y)

	z := res.Columns[2].Int8()
	require.Equal(t, format.FillInt8, z[0])
	require.Equal(t, format.FillInt8, z[1])
	require.Equal(t, []int8{0, 1}, z[2:])

	for i := range res.Columns {
		require.Equal(t, res.NRecords, res.Columns[i].Len())
	}
}

func TestReadFilesMatchesReadFile(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "seg.dbd", mixedFile().bytes(t))

	single, err := ReadFile(path)
	require.NoError(t, err)

	many, err := ReadFiles([]string{path})
	require.NoError(t, err)
	require.Equal(t, 1, many.NFiles)
	require.Equal(t, single.NRecords, many.NRecords)
	require.Equal(t, single.SensorInfo, many.SensorInfo)
	require.Equal(t, single.Columns, many.Columns)
}

func TestReadFilesFilters(t *testing.T) {
	dir := t.TempDir()
	pPath, qPath := unionPair(t, dir)

	other := mixedFile()
	other.mission = "shallow.mi"
	otherPath := writeTestFile(t, dir, "r.dbd", other.bytes(t))

	t.Run("SkipMissions", func(t *testing.T) {
		res, err := ReadFiles([]string{pPath, qPath, otherPath}, WithSkipMissions("shallow.mi"))
		require.NoError(t, err)
		require.Equal(t, 2, res.NFiles)
		for _, info := range res.SensorInfo {
			require.NotEqual(t, "m_depth", info.Name)
		}
	})

	t.Run("KeepMissions", func(t *testing.T) {
		res, err := ReadFiles([]string{pPath, qPath, otherPath}, WithKeepMissions("shallow.mi"))
		require.NoError(t, err)
		require.Equal(t, 1, res.NFiles)
		require.Equal(t, 3, res.NRecords)
	})

	t.Run("KeepSensors", func(t *testing.T) {
		res, err := ReadFiles([]string{pPath, qPath}, WithKeep("y"))
		require.NoError(t, err)
		require.Len(t, res.Columns, 1)
		require.Equal(t, "y", res.SensorInfo[0].Name)
		require.Equal(t, 5, res.NRecords)
	})

	t.Run("NoValidFiles", func(t *testing.T) {
		res, err := ReadFiles([]string{pPath}, WithKeepMissions("nonexistent.mi"))
		require.NoError(t, err)
		require.Equal(t, 0, res.NFiles)
		require.Equal(t, 0, res.NRecords)
		require.Empty(t, res.Columns)
	})

	t.Run("UnreadablePathSkipped", func(t *testing.T) {
		res, err := ReadFiles([]string{pPath, dir + "/missing.dbd"})
		require.NoError(t, err)
		require.Equal(t, 1, res.NFiles)
	})
}

func TestReadFilesSizeMismatch(t *testing.T) {
	dir := t.TempDir()

	a := &testFile{
		mission: "deep.mi",
		crc:     "BBBB0001",
		sensors: []testSensor{{avail: true, size: 2, name: "m_val", units: "nodim"}},
		records: []testRecord{{codes: []int{2}, values: []any{1}}},
	}
	b := &testFile{
		mission: "deep.mi",
		crc:     "BBBB0002",
		sensors: []testSensor{{avail: true, size: 4, name: "m_val", units: "nodim"}},
		records: []testRecord{{codes: []int{2}, values: []any{1.0}}},
	}
	aPath := writeTestFile(t, dir, "a.dbd", a.bytes(t))
	bPath := writeTestFile(t, dir, "b.dbd", b.bytes(t))

	_, err := ReadFiles([]string{aPath, bPath})
	require.ErrorIs(t, err, errs.ErrSensorSizeMismatch)
}

func TestReadFilesSharedCRC(t *testing.T) {
	// Two files with the same sensor-list CRC share one roster entry;
	// the second file's inline list is never re-parsed.
	dir := t.TempDir()

	mk := func(vals ...int) *testFile {
		recs := make([]testRecord, len(vals))
		for i, v := range vals {
			recs[i] = testRecord{codes: []int{2}, values: []any{v}}
		}

		return &testFile{
			mission: "deep.mi",
			crc:     "CCCC0003",
			sensors: []testSensor{int8Sensor("m_flag")},
			records: recs,
		}
	}
	aPath := writeTestFile(t, dir, "a.dbd", mk(1, 2).bytes(t))
	bPath := writeTestFile(t, dir, "b.dbd", mk(3, 4).bytes(t))

	res, err := ReadFiles([]string{aPath, bPath})
	require.NoError(t, err)
	require.Equal(t, 2, res.NFiles)
	require.Equal(t, []int8{1, 2, 3, 4}, res.Columns[0].Int8())
}

func TestReadFilesUncachedCRCLess(t *testing.T) {
	// Files without a sensor_list_crc still merge; identical rosters
	// are deduplicated by content hash.
	dir := t.TempDir()

	mk := func(v int) *testFile {
		return &testFile{
			mission: "deep.mi",
			sensors: []testSensor{int8Sensor("m_flag")},
			records: []testRecord{{codes: []int{2}, values: []any{v}}},
		}
	}
	aPath := writeTestFile(t, dir, "a.dbd", mk(1).bytes(t))
	bPath := writeTestFile(t, dir, "b.dbd", mk(2).bytes(t))

	res, err := ReadFiles([]string{aPath, bPath})
	require.NoError(t, err)
	require.Equal(t, 2, res.NFiles)
	require.Equal(t, []int8{1, 2}, res.Columns[0].Int8())
}

func TestReadFilesFill(t *testing.T) {
	// Union rows a file does not cover hold the per-kind fill sentinel.
	dir := t.TempDir()
	pPath, qPath := unionPair(t, dir)

	res, err := ReadFiles([]string{pPath, qPath}, WithKeep("x"))
	require.NoError(t, err)
	require.Equal(t, 5, res.NRecords)

	x := res.Columns[0].Int16()
	require.Equal(t, []int16{10, 11, format.FillInt16, format.FillInt16, format.FillInt16}, x)

	res, err = ReadFiles([]string{pPath, qPath}, WithKeep("y", "z"))
	require.NoError(t, err)
	y := res.Columns[0].Float32()
	require.False(t, math.IsNaN(float64(y[0])))
	z := res.Columns[1].Int8()
	require.Equal(t, format.FillInt8, z[0])
}

func TestScanRosters(t *testing.T) {
	dir := t.TempDir()
	pPath, qPath := unionPair(t, dir)

	scan, err := ScanRosters([]string{qPath, pPath})
	require.NoError(t, err)
	require.Equal(t, 2, scan.NFiles)
	require.Len(t, scan.SensorInfo, 3)
	require.Equal(t, "x", scan.SensorInfo[0].Name)
	require.Equal(t, "y", scan.SensorInfo[1].Name)
	require.Equal(t, "z", scan.SensorInfo[2].Name)
	require.Equal(t, 4, scan.SensorInfo[1].Size)
}

func TestScanHeaders(t *testing.T) {
	dir := t.TempDir()
	pPath, qPath := unionPair(t, dir)

	infos, err := ScanHeaders([]string{qPath, pPath})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, pPath, infos[0].Path)
	require.Equal(t, "AAAA0001", infos[0].SensorListCRC)
	require.Equal(t, "deep.mi", infos[0].MissionName)
	require.Equal(t, qPath, infos[1].Path)

	filtered, err := ScanHeaders([]string{qPath, pPath}, WithKeepMissions("other.mi"))
	require.NoError(t, err)
	require.Empty(t, filtered)
}
