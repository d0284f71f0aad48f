// Command cbuf_dump pretty-prints (or CSV-dumps) messages from a ulog
// directory, merging every matching .cb file in packet_timest order. It
// can also report per-type message counts or merge matched frames into a
// new self-describing .cb file instead of dumping.
//
// Usage:
//
//	cbuf_dump [--csv] [--filter name] [--from t] [--to t] [--watch] [--count] [--merge-out file] <ulog_dir>
package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/blockberries/cbuf/pkg/cbuf"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("cbuf_dump", pflag.ContinueOnError)
	csvMode := flags.Bool("csv", false, "emit CSV instead of a pretty-printed dump")
	filterFlag := flags.StringArray("filter", nil, "only dump frames of this type name (repeatable)")
	from := flags.Float64("from", 0, "only dump frames at or after this packet_timest")
	to := flags.Float64("to", 0, "only dump frames at or before this packet_timest")
	watch := flags.Bool("watch", false, "live-tail the directory for newly created .cb files")
	lenient := flags.Bool("lenient", true, "skip corrupt frames instead of failing")
	count := flags.Bool("count", false, "print a per-type message count and exit instead of dumping")
	mergeOut := flags.String("merge-out", "", "merge matched frames into a new .cb file at this path instead of dumping")
	exclude := flags.Bool("exclude", false, "treat --filter as an exclude list instead of an include list")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cbuf_dump [--csv] [--filter name]... [--from t] [--to t] [--watch] [--count] [--merge-out file] <ulog_dir>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}

	if flags.NArg() != 1 {
		flags.Usage()
		return 1
	}
	dir := flags.Arg(0)

	log := logrus.WithField("component", "cbuf_dump")

	mode := cbuf.Strict
	if *lenient {
		mode = cbuf.Lenient
	}

	paths, err := cbuf.DiscoverFiles(dir, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
		return 1
	}

	readers := make([]*cbuf.LogReader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, p := range paths {
		r, err := cbuf.OpenLogReader(p, mode)
		if err != nil {
			log.WithError(err).Warnf("skipping unreadable file %s", p)
			continue
		}
		readers = append(readers, r)
	}

	merger, err := cbuf.NewMerger(readers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
		return 1
	}

	names := make(map[string]bool, len(*filterFlag))
	for _, name := range *filterFlag {
		names[name] = true
	}
	filter := cbuf.Filter{Include: names}
	if *exclude {
		filter = cbuf.Filter{Exclude: names}
	}
	if len(names) > 0 {
		merger.SetFilter(filter)
	}

	if *from != 0 || *to != 0 {
		end := *to
		if end == 0 {
			end = math.Inf(1)
		}
		merger.SetTimeWindow(cbuf.TimeWindow{Start: *from, End: end, Enabled: true})
	}

	if *count {
		counts, err := merger.CountMessages()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
			return 1
		}
		typeNames := make([]string, 0, len(counts))
		for name := range counts {
			typeNames = append(typeNames, name)
		}
		sort.Strings(typeNames)
		for _, name := range typeNames {
			fmt.Printf("%s %s\n", name, humanize.Comma(counts[name]))
		}
		return 0
	}

	if *mergeOut != "" {
		out, err := os.Create(*mergeOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
			return 1
		}
		defer out.Close()
		if err := merger.Merge(out, filter); err != nil {
			fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "%s messages merged into %s\n", humanize.Comma(merger.Delivered()), *mergeOut)
		return 0
	}

	d := &dumper{csv: *csvMode, w: os.Stdout}
	merger.OnAny(d.dump)

	if err := merger.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
		return 1
	}
	d.flush()
	if !*csvMode {
		fmt.Fprintf(os.Stderr, "%s messages\n", humanize.Comma(merger.Delivered()))
	}

	if !*watch {
		return 0
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	err = cbuf.Watch(dir, "", stop, func(path string) {
		r, err := cbuf.OpenLogReader(path, mode)
		if err != nil {
			log.WithError(err).Warnf("skipping unreadable file %s", path)
			return
		}
		readers = append(readers, r)
		m, err := cbuf.NewMerger([]*cbuf.LogReader{r})
		if err != nil {
			log.WithError(err).Warn("failed to merge new file")
			return
		}
		m.OnAny(d.dump)
		if err := m.Run(); err != nil {
			log.WithError(err).Warnf("error draining %s", path)
		}
		d.flush()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbuf_dump: %s\n", err)
		return 1
	}
	return 0
}

// dumper accumulates matched frames and renders them either as a running
// pretty-printed text stream or as CSV rows, the header taken from the
// first struct encountered.
type dumper struct {
	csv        bool
	w          *os.File
	csvWriter  *csv.Writer
	csvHeader  []string
	headerDone bool
}

func (d *dumper) dump(name string, frame cbuf.Frame, reflected func() (*cbuf.Value, error)) {
	v, err := reflected()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbuf_dump: decode %s: %s\n", name, err)
		return
	}

	if !d.csv {
		fmt.Fprintf(d.w, "[%s] %s %s\n", strconv.FormatFloat(frame.Preamble.PacketTimest, 'f', -1, 64), name, renderValue(v))
		return
	}

	if d.csvWriter == nil {
		d.csvWriter = csv.NewWriter(d.w)
	}
	if !d.headerDone {
		d.csvHeader = append([]string{"packet_timest"}, fieldNames(v)...)
		d.csvWriter.Write(d.csvHeader)
		d.headerDone = true
	}
	row := append([]string{strconv.FormatFloat(frame.Preamble.PacketTimest, 'f', -1, 64)}, fieldValues(v)...)
	d.csvWriter.Write(row)
}

func (d *dumper) flush() {
	if d.csvWriter != nil {
		d.csvWriter.Flush()
	}
}

func renderValue(v *cbuf.Value) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v *cbuf.Value) {
	switch v.Kind {
	case cbuf.KindStruct:
		b.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s=", f.Name)
			writeValue(b, f)
		}
		b.WriteString("}")
	case cbuf.KindArray:
		b.WriteString("[")
		for i, e := range v.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e)
		}
		b.WriteString("]")
	case cbuf.KindString:
		fmt.Fprintf(b, "%q", v.String)
	case cbuf.KindEnum:
		if v.EnumName != "" {
			b.WriteString(v.EnumName)
		} else {
			fmt.Fprintf(b, "%d", v.EnumValue)
		}
	default:
		fmt.Fprintf(b, "%v", v.Scalar)
	}
}

// fieldNames/fieldValues flatten the top-level fields of a struct Value
// into CSV columns; nested structs/arrays render as their pretty-printed
// text rather than further columns, matching the "first struct sets the
// header" convention described for --csv.
func fieldNames(v *cbuf.Value) []string {
	if v.Kind != cbuf.KindStruct {
		return nil
	}
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

func fieldValues(v *cbuf.Value) []string {
	if v.Kind != cbuf.KindStruct {
		return nil
	}
	vals := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		vals[i] = renderValue(f)
	}
	return vals
}
