package ifstats

import (
	"io"

	"github.com/gocarina/gocsv"
)

// csvRow is the flattened, string-tagged shape gocsv marshals; Snapshot
// itself stays numeric-typed internally so callers aren't forced through
// CSV's string representation.
type csvRow struct {
	Index     int32  `csv:"ifindex"`
	Truncated bool   `csv:"truncated"`
	RxPackets uint64 `csv:"rx_packets"`
	TxPackets uint64 `csv:"tx_packets"`
	RxBytes   uint64 `csv:"rx_bytes"`
	TxBytes   uint64 `csv:"tx_bytes"`
	RxErrors  uint64 `csv:"rx_errors"`
	TxErrors  uint64 `csv:"tx_errors"`
	RxDropped uint64 `csv:"rx_dropped"`
	TxDropped uint64 `csv:"tx_dropped"`
}

// WriteCSV renders a set of snapshots as CSV, one row per interface.
func WriteCSV(w io.Writer, snaps []*Snapshot) error {
	rows := make([]csvRow, len(snaps))
	for i, s := range snaps {
		rows[i] = csvRow{
			Index:     s.Index,
			Truncated: s.Truncated,
			RxPackets: s.RxPackets,
			TxPackets: s.TxPackets,
			RxBytes:   s.RxBytes,
			TxBytes:   s.TxBytes,
			RxErrors:  s.RxErrors,
			TxErrors:  s.TxErrors,
			RxDropped: s.RxDropped,
			TxDropped: s.TxDropped,
		}
	}
	return gocsv.Marshal(rows, w)
}
