package dbd

import "github.com/gliderops/dinkum/format"

// Column is one typed output column: exactly one of the backing slices
// is active, selected by the sensor's kind. The zero Column is a gap
// placeholder used in union-aligned per-file results for output indices
// this file does not populate.
type Column struct {
	kind format.SensorKind
	i8   []int8
	i16  []int16
	f32  []float32
	f64  []float64
}

// newColumn allocates a column of the given kind with capacity rows,
// every cell holding the kind's fill sentinel.
func newColumn(kind format.SensorKind, capacity int) Column {
	c := Column{kind: kind}
	switch kind {
	case format.KindInt8:
		c.i8 = make([]int8, capacity)
		for i := range c.i8 {
			c.i8[i] = format.FillInt8
		}
	case format.KindInt16:
		c.i16 = make([]int16, capacity)
		for i := range c.i16 {
			c.i16[i] = format.FillInt16
		}
	case format.KindFloat32:
		c.f32 = make([]float32, capacity)
		fill := format.FillFloat32()
		for i := range c.f32 {
			c.f32[i] = fill
		}
	case format.KindFloat64:
		c.f64 = make([]float64, capacity)
		fill := format.FillFloat64()
		for i := range c.f64 {
			c.f64[i] = fill
		}
	}

	return c
}

// Kind returns the column's value kind; 0 for a gap placeholder.
func (c *Column) Kind() format.SensorKind { return c.kind }

// Len returns the column's row count.
func (c *Column) Len() int {
	switch c.kind {
	case format.KindInt8:
		return len(c.i8)
	case format.KindInt16:
		return len(c.i16)
	case format.KindFloat32:
		return len(c.f32)
	case format.KindFloat64:
		return len(c.f64)
	default:
		return 0
	}
}

// Int8 returns the backing slice of an int8 column, nil otherwise.
func (c *Column) Int8() []int8 { return c.i8 }

// Int16 returns the backing slice of an int16 column, nil otherwise.
func (c *Column) Int16() []int16 { return c.i16 }

// Float32 returns the backing slice of a float32 column, nil otherwise.
func (c *Column) Float32() []float32 { return c.f32 }

// Float64 returns the backing slice of a float64 column, nil otherwise.
func (c *Column) Float64() []float64 { return c.f64 }

// ensure grows the column (doubling, fill-initialized) until row is a
// valid index.
func (c *Column) ensure(row int) {
	for row >= c.Len() && c.kind != 0 {
		n := c.Len() * 2
		if n == 0 {
			n = 256
		}
		switch c.kind {
		case format.KindInt8:
			grown := make([]int8, n)
			copy(grown, c.i8)
			for i := len(c.i8); i < n; i++ {
				grown[i] = format.FillInt8
			}
			c.i8 = grown
		case format.KindInt16:
			grown := make([]int16, n)
			copy(grown, c.i16)
			for i := len(c.i16); i < n; i++ {
				grown[i] = format.FillInt16
			}
			c.i16 = grown
		case format.KindFloat32:
			grown := make([]float32, n)
			copy(grown, c.f32)
			fill := format.FillFloat32()
			for i := len(c.f32); i < n; i++ {
				grown[i] = fill
			}
			c.f32 = grown
		case format.KindFloat64:
			grown := make([]float64, n)
			copy(grown, c.f64)
			fill := format.FillFloat64()
			for i := len(c.f64); i < n; i++ {
				grown[i] = fill
			}
			c.f64 = grown
		}
	}
}

// trim shrinks the column to n rows.
func (c *Column) trim(n int) {
	switch c.kind {
	case format.KindInt8:
		c.i8 = c.i8[:n]
	case format.KindInt16:
		c.i16 = c.i16[:n]
	case format.KindFloat32:
		c.f32 = c.f32[:n]
	case format.KindFloat64:
		c.f64 = c.f64[:n]
	}
}

// dropFirst discards row 0.
func (c *Column) dropFirst() {
	switch c.kind {
	case format.KindInt8:
		c.i8 = c.i8[1:]
	case format.KindInt16:
		c.i16 = c.i16[1:]
	case format.KindFloat32:
		c.f32 = c.f32[1:]
	case format.KindFloat64:
		c.f64 = c.f64[1:]
	}
}

// copyFrom copies n rows from src starting at srcOff into this column at
// dstOff. Both columns must share a kind.
func (c *Column) copyFrom(src *Column, srcOff, dstOff, n int) {
	switch c.kind {
	case format.KindInt8:
		copy(c.i8[dstOff:dstOff+n], src.i8[srcOff:srcOff+n])
	case format.KindInt16:
		copy(c.i16[dstOff:dstOff+n], src.i16[srcOff:srcOff+n])
	case format.KindFloat32:
		copy(c.f32[dstOff:dstOff+n], src.f32[srcOff:srcOff+n])
	case format.KindFloat64:
		copy(c.f64[dstOff:dstOff+n], src.f64[srcOff:srcOff+n])
	}
}

// scalar is the previous-value cell of one output column; only the
// field matching the column's kind is meaningful.
type scalar struct {
	i8  int8
	i16 int16
	f32 float32
	f64 float64
}

// fillScalar returns a previous-value cell in its initial state: fill
// sentinels for every kind.
func fillScalar() scalar {
	return scalar{
		i8:  format.FillInt8,
		i16: format.FillInt16,
		f32: format.FillFloat32(),
		f64: format.FillFloat64(),
	}
}

// setScalar stores the previous-value cell into row.
func (c *Column) setScalar(row int, v scalar) {
	switch c.kind {
	case format.KindInt8:
		c.i8[row] = v.i8
	case format.KindInt16:
		c.i16[row] = v.i16
	case format.KindFloat32:
		c.f32[row] = v.f32
	case format.KindFloat64:
		c.f64[row] = v.f64
	}
}
