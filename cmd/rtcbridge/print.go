package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cryguy/rtcbridge/internal/trace"
)

const timeLayout = "15:04:05.000"

// printJournal writes the invocations and events of session, or of every
// session when session is empty, as two tables.
func printJournal(out io.Writer, j *trace.Journal, session string) error {
	invs, err := j.Invocations(session)
	if err != nil {
		return err
	}
	evs, err := j.Events(session)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tCALL\tOUTCOME\tCODE\tDURATION\tARGS")
	for _, inv := range invs {
		dur := "-"
		if !inv.FinishedAt.IsZero() {
			dur = inv.FinishedAt.Sub(inv.StartedAt).Round(time.Microsecond).String()
		}
		code := inv.Code
		if inv.Message != "" {
			code += " " + inv.Message
		}
		fmt.Fprintf(w, "%s\t%s\t%s.%s\t%s\t%s\t%s\t%s\n",
			short(inv.Session), inv.StartedAt.Format(timeLayout), inv.Subsystem, inv.Method,
			inv.Outcome, code, dur, inv.Args)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SESSION\tPUBLISHED\tEVENT\tPAYLOAD")
	for _, ev := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			short(ev.Session), ev.PublishedAt.Format(timeLayout), ev.Name, ev.Payload)
	}
	return w.Flush()
}

func short(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	return session
}
