// Command doorwatch-journal lists the events recorded in a doorwatch journal
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"doorwatch/internal/database"
	"doorwatch/internal/pipeline"
)

func main() {
	var (
		dbF     = flag.String("db", "doorwatch.db", "Journal database path")
		limitF  = flag.Int("limit", 50, "Maximum number of events to list, 0 for all")
		kindF   = flag.String("kind", "", "Only list events of this kind (door_left_open, door_closed, motion_positive, motion_negative)")
		sinceF  = flag.Duration("since", 0, "Only list events newer than this, e.g. 24h")
		jsonF   = flag.Bool("json", false, "Print events as JSON lines")
		countsF = flag.Bool("counts", false, "Print the number of events per kind instead")
		pruneF  = flag.Duration("prune", 0, "Delete events older than this before listing")
	)
	flag.Parse()
	log.SetFlags(0)

	journal, err := database.Open(*dbF, "")
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer journal.Close()

	if *pruneF > 0 {
		n, err := journal.DeleteBefore(time.Now().Add(-*pruneF))
		if err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("pruned %d events", n)
	}

	if *countsF {
		counts, err := journal.CountByKind()
		if err != nil {
			log.Fatalf("%v", err)
		}
		printCounts(os.Stdout, counts)
		return
	}

	filter := database.ListFilter{Kind: pipeline.EventKind(*kindF), Limit: *limitF}
	if *sinceF > 0 {
		filter.Since = time.Now().Add(-*sinceF)
	}
	records, err := journal.List(filter)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *jsonF {
		err = printJSON(os.Stdout, records)
	} else {
		err = printTable(os.Stdout, records)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func printTable(w io.Writer, records []*database.EventRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tFRAME\tDISTANCE\tPOSITION\tSOURCE\tID")
	for _, r := range records {
		distance, position := "-", "-"
		if r.Kind == pipeline.EventMotionPositive || r.Kind == pipeline.EventMotionNegative {
			distance = fmt.Sprintf("%.0f", r.Distance)
			position = fmt.Sprintf("%.0f", r.Position)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05.000"), r.Kind, r.FrameSeq,
			distance, position, r.Source, r.ID)
	}
	return tw.Flush()
}

type jsonRecord struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Kind      pipeline.EventKind `json:"kind"`
	Timestamp time.Time          `json:"timestamp"`
	FrameSeq  uint64             `json:"frame_seq"`
	Distance  float64            `json:"distance,omitempty"`
	Position  float64            `json:"position,omitempty"`
}

func printJSON(w io.Writer, records []*database.EventRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(jsonRecord(*r)); err != nil {
			return err
		}
	}
	return nil
}

func printCounts(w io.Writer, counts map[pipeline.EventKind]int) {
	for _, kind := range []pipeline.EventKind{
		pipeline.EventDoorLeftOpen,
		pipeline.EventDoorClosed,
		pipeline.EventMotionPositive,
		pipeline.EventMotionNegative,
	} {
		fmt.Fprintf(w, "%-16s %d\n", kind, counts[kind])
	}
}
