package dbd

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/gliderops/dinkum/format"
)

// Result holds the decoded output of one parse: typed columns, their
// sensor metadata, and the committed record count. Columns[i] is
// described by SensorInfo[i] and every column has NRecords rows, except
// the zero-value gap columns of a union-aligned per-file result, which
// have no rows and an empty SensorInfo entry.
type Result struct {
	Columns    []Column
	SensorInfo []SensorInfo
	NRecords   int
}

// dropFirst discards the first committed record.
func (res *Result) dropFirst() {
	if res.NRecords == 0 {
		return
	}
	for i := range res.Columns {
		res.Columns[i].dropFirst()
	}
	res.NRecords--
}

// decodeColumns consumes data records from br until the 'X' terminator,
// end of stream, or an unrepairable stray byte.
//
// Each record is 'd' followed by the header-bit bytes: a 2-bit code per
// roster sensor, four per byte, most significant pair first. Code 0 is
// absent (fill), 1 repeats the sensor's previous value, 2 reads a new
// value from the stream, 3 is reserved and treated as absent. New values
// are consumed from the stream even for non-kept sensors to preserve
// alignment.
//
// When every sensor is a criteria sensor (the default mask) each record
// that decodes commits. With a narrower mask a record commits only when
// one of the criteria sensors had code 1 or 2; dropped records leave
// both the columns and the previous-value state untouched.
//
// I/O failures mid-record discard that record and keep everything
// committed before it; decodeColumns never fails once the roster is
// resolved.
func decodeColumns(br *bufio.Reader, kb *KnownBytes, roster *Roster, repair bool, sizeHint int, logger *slog.Logger) *Result {
	nSensors := roster.Len()
	headerBytes := roster.HeaderBytes()
	bits := make([]byte, headerBytes)

	// Union-aligned rosters may leave output indices this file does not
	// populate; those stay as zero-value gap columns.
	nOut := 0
	outIndex := make([]int, nSensors)
	for i := 0; i < nSensors; i++ {
		s := roster.At(i)
		outIndex[i] = -1
		if s.Keep && s.OutputIndex >= 0 {
			outIndex[i] = s.OutputIndex
			if s.OutputIndex+1 > nOut {
				nOut = s.OutputIndex + 1
			}
		}
	}

	sensorInfo := make([]SensorInfo, nOut)
	for i := 0; i < nSensors; i++ {
		s := roster.At(i)
		if oi := outIndex[i]; oi >= 0 {
			sensorInfo[oi] = SensorInfo{Name: s.Name, Units: s.Units, Size: s.Size}
		}
	}

	initCap := 2*sizeHint/(headerBytes+1) + 1
	if initCap < 256 {
		initCap = 256
	}

	columns := make([]Column, nOut)
	prev := make([]scalar, nOut)
	for i, info := range sensorInfo {
		if kind, ok := format.KindForSize(info.Size); ok {
			columns[i] = newColumn(kind, initCap)
			prev[i] = fillScalar()
		}
	}

	// With the default criteria mask (every sensor a criteria sensor)
	// each record that decodes commits, including all-absent records.
	allCriteria := true
	for i := 0; i < nSensors; i++ {
		if !roster.At(i).Criteria {
			allCriteria = false
			break
		}
	}

	rows := 0
	warnedReserved := false

	// Dropped records must leave both the columns and the previous-value
	// state untouched, so cell writes are tracked for revert and prev
	// updates are staged until the record commits.
	type prevUpdate struct {
		oi  int
		val scalar
	}
	var touched []int
	var staged []prevUpdate

records:
	for {
		tag, err := br.ReadByte()
		if err != nil {
			break
		}
		if tag == format.TagEnd {
			break
		}
		if tag != format.TagData {
			// Stray byte. Scan strictly for the next 'd': an 'X' found
			// here is ordinary data at an unaligned offset, not the
			// terminator.
			found := false
			for {
				c, err := br.ReadByte()
				if err != nil {
					break
				}
				if c == format.TagData {
					found = true
					break
				}
			}
			if !repair || !found {
				break
			}
			if logger != nil {
				logger.Warn("stray bytes before data record, resynchronized", "record", rows)
			}
		}

		if _, err := io.ReadFull(br, bits); err != nil {
			break
		}

		// Grow every output column up front: absent and reserved codes
		// write nothing, yet the row they occupy must still exist when
		// the columns are trimmed to the committed count.
		for oi := range columns {
			columns[oi].ensure(rows)
		}

		commit := allCriteria
		touched = touched[:0]
		staged = staged[:0]
		for i := 0; i < nSensors; i++ {
			code := bits[i>>2] >> uint(6-(i&3)*2) & 0x03
			switch code {
			case 1:
				s := roster.At(i)
				if s.Criteria {
					commit = true
				}
				if oi := outIndex[i]; oi >= 0 {
					columns[oi].setScalar(rows, prev[oi])
					touched = append(touched, oi)
				}
			case 2:
				s := roster.At(i)
				if s.Criteria {
					commit = true
				}
				oi := outIndex[i]

				// The value bytes are present for every available
				// sensor with code 2; read them even when discarding.
				var val scalar
				switch s.Size {
				case 1:
					v, err := kb.Read8(br)
					if err != nil {
						break records
					}
					val.i8 = v
				case 2:
					v, err := kb.Read16(br)
					if err != nil {
						break records
					}
					val.i16 = v
				case 4:
					v, err := kb.Read32(br)
					if err != nil {
						break records
					}
					val.f32 = v
				case 8:
					v, err := kb.Read64(br)
					if err != nil {
						break records
					}
					val.f64 = v
				}
				if oi >= 0 {
					columns[oi].setScalar(rows, val)
					touched = append(touched, oi)
					staged = append(staged, prevUpdate{oi: oi, val: val})
				}
			case 3:
				// Reserved; behaves as absent.
				if !warnedReserved {
					if logger != nil {
						logger.Warn("reserved header-bit code 3 treated as absent", "sensor", roster.At(i).Name)
					}
					warnedReserved = true
				}
			}
		}

		if commit {
			for _, u := range staged {
				prev[u.oi] = u.val
			}
			rows++
		} else {
			for _, oi := range touched {
				columns[oi].setScalar(rows, fillScalar())
			}
		}
	}

	for i := range columns {
		columns[i].trim(rows)
	}

	return &Result{Columns: columns, SensorInfo: sensorInfo, NRecords: rows}
}
