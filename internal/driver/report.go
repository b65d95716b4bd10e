package driver

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// WriteCSV serializes one row per configuration in the stable column order
// downstream tooling expects.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"policy_name", "capacity_bytes", "requests", "misses",
		"miss_ratio", "byte_miss_ratio", "resident_objects", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		row := []string{
			r.PolicyName,
			strconv.FormatUint(r.CapacityBytes, 10),
			strconv.FormatUint(r.Stats.Requests, 10),
			strconv.FormatUint(r.Stats.Misses+r.Stats.Rejected, 10),
			strconv.FormatFloat(r.Stats.MissRatio(), 'f', 6, 64),
			strconv.FormatFloat(r.Stats.ByteMissRatio(), 'f', 6, 64),
			strconv.FormatUint(r.ResidentObjects, 10),
			errMsg,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable renders results for a terminal.
func WriteTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tPOLICY\tCAPACITY\tREQUESTS\tMISSES\tMISS RATIO\tBYTE MISS\tRESIDENT\tELAPSED")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%d\tFAILED: %s\n",
				r.ConfigName, r.PolicyName, r.CapacityBytes, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.4f\t%.4f\t%d\t%s\n",
			r.ConfigName, r.PolicyName, r.CapacityBytes,
			r.Stats.Requests, r.Stats.Misses+r.Stats.Rejected,
			r.Stats.MissRatio(), r.Stats.ByteMissRatio(),
			r.ResidentObjects, r.Elapsed.Round(time.Millisecond))
	}
	return tw.Flush()
}
