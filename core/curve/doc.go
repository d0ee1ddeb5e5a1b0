// Package curve holds the capacity curve of a flexibility market session.
//
// A Curve stores one signed capacity value per interval: positive values are
// ramp-up headroom, negative values are ramp-down headroom. Range sums are
// served by a flat segment tree laid out in a single slice, leaves at offset
// n and parents at i/2, so no recursion is involved in building or querying.
package curve
