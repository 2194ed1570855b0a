package boring

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

// WriteSampleCSV writes a three-boring example log in the canonical column
// layout, useful for trying the import pipeline end to end. B-101 ends in a
// refusal interval, B-103 carries ten intervals.
func WriteSampleCSV(path string) error {
	rows := [][]string{
		{ColBoringID, ColLatitude, ColLongitude, ColElevation, ColDate, ColTotalDepth,
			ColRockDepth, ColWaterDepth, ColDepthIntervals, ColBlowCounts, ColPenetrationMM, ColDescription},
		{"B-101", "40.051", "-78.512", "1250", "2023-05-15", "45", "32", "12",
			"2,4,6,8,10,12,14,16",
			"6-8-10,8-10-12,10-12-15,12-15-18,15-18-22,18-22-25,20-25-30,25-30-R",
			"150,150,150,150,150,150,150,0",
			"Highway boring near MP 110"},
		{"B-102", "40.048", "-78.498", "1245", "2023-05-16", "38", "28", "10",
			"2,4,6,8,10,12,14,16",
			"4-6-8,6-8-10,8-10-12,10-12-15,12-15-18,15-18-20,18-20-25,20-25-R",
			"150,150,150,150,150,150,150,0",
			"Bridge approach boring"},
		{"B-103", "40.045", "-78.485", "1255", "2023-05-17", "52", "41", "15",
			"2,4,6,8,10,12,14,16,18,20",
			"3-5-6,4-6-8,6-8-10,8-10-12,10-12-14,12-14-16,14-16-18,16-18-20,18-20-24,20-24-R",
			"150,150,150,150,150,150,150,150,150,0",
			"Slope stability investigation"},
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "boring: create %s", path)
	}
	if err := csv.NewWriter(f).WriteAll(rows); err != nil {
		f.Close()
		return eris.Wrapf(err, "boring: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "boring: close %s", path)
	}
	return nil
}
