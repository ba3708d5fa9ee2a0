// Package dinkum reads Dinkum Binary Data (DBD) files produced by
// Slocum ocean gliders into typed, column-oriented arrays.
//
// The format mixes 1/2/4/8-byte integer and float sensors, so results
// expose one typed column per kept sensor rather than a single numeric
// matrix. Raw (.dbd, .ebd, ...) and LZ4-framed (.dcd, .ecd, ...) files
// are handled transparently, as are factored files whose sensor list
// lives in a {crc}.cac / {crc}.ccc cache.
//
// # Basic Usage
//
// Reading one segment:
//
//	res, err := dinkum.Read("segment.dbd", dbd.WithCacheDir("cache"))
//	if err != nil {
//	    return err
//	}
//	for i, info := range res.SensorInfo {
//	    fmt.Println(info.Name, res.Columns[i].Len())
//	}
//
// Merging a deployment's segments into one table:
//
//	res, err := dinkum.ReadAll(paths,
//	    dbd.WithCacheDir("cache"),
//	    dbd.WithKeep("m_depth", "m_water_vx", "m_water_vy"),
//	)
//
// # Package Structure
//
// This package wraps the dbd package with the defaults of the glider
// processing tooling: skip-first enabled, so the duplicated boundary
// record between consecutive segments is dropped. For full control use
// the dbd package directly.
package dinkum

import "github.com/gliderops/dinkum/dbd"

// defaults prepends the tooling defaults so explicit options win.
func defaults(opts []dbd.Option) []dbd.Option {
	return append([]dbd.Option{dbd.WithSkipFirst(true)}, opts...)
}

// Read decodes a single DBD file with skip-first enabled.
func Read(path string, opts ...dbd.Option) (*dbd.FileResult, error) {
	return dbd.ReadFile(path, defaults(opts)...)
}

// ReadAll merges multiple DBD files into one union-shaped result with
// skip-first enabled.
func ReadAll(paths []string, opts ...dbd.Option) (*dbd.MultiResult, error) {
	return dbd.ReadFiles(paths, defaults(opts)...)
}

// ScanRosters resolves the union sensor schema of the given files
// without decoding any data records.
func ScanRosters(paths []string, opts ...dbd.Option) (*dbd.RosterScan, error) {
	return dbd.ScanRosters(paths, opts...)
}

// ScanHeaders parses only the headers of the given files.
func ScanHeaders(paths []string, opts ...dbd.Option) ([]dbd.HeaderInfo, error) {
	return dbd.ScanHeaders(paths, opts...)
}
