package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// series wraps one open CSV writer for a single scheduler/table pair.
type series struct {
	w *csv.Writer
	f *os.File
}

func (s *series) writeRow(row []string) {
	if err := s.w.Write(row); err != nil {
		logrus.WithError(err).Warn("trace: failed to write CSV row")
		return
	}
	s.w.Flush()
}

// CSVSink implements Sink by writing the three stable-format tables of
// spec.md §6 under dir, one file per (scheduler name, table kind), via
// an injected-recorder idiom defaulting to a no-op.
type CSVSink struct {
	dir         string
	buffers     map[string]*series
	dropped     map[string]*series
	maxBuf      map[string]*series
	sizeHistory map[string][]float64
	runningMax  map[string]float64
}

// NewCSVSink creates a CSVSink writing files under dir (created if
// missing).
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{
		dir:         dir,
		buffers:     make(map[string]*series),
		dropped:     make(map[string]*series),
		maxBuf:      make(map[string]*series),
		sizeHistory: make(map[string][]float64),
		runningMax:  make(map[string]float64),
	}
}

func (s *CSVSink) open(store map[string]*series, name, kind string, header []string) *series {
	if se, ok := store[name]; ok {
		return se
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		logrus.WithError(err).Warn("trace: failed to create output directory")
		return nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", name, kind))
	f, err := os.Create(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("trace: failed to create CSV file")
		return nil
	}
	w := csv.NewWriter(f)
	_ = w.Write(header)
	w.Flush()
	se := &series{w: w, f: f}
	store[name] = se
	return se
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// RecordBuffer implements Sink: <name>_Buffers.csv, header "Clock, MAX_P,
// MIN_TH, MAX_TH, AVG, QUEUE_SIZE" (FIFO leaves MAX_P/MIN_TH/MAX_TH blank).
func (s *CSVSink) RecordBuffer(name string, clock, maxP, minTh, maxTh, avg float64, queueSize int) {
	se := s.open(s.buffers, name, "Buffers", []string{"Clock", "MAX_P", "MIN_TH", "MAX_TH", "AVG", "QUEUE_SIZE"})
	if se == nil {
		return
	}
	row := []string{ftoa(clock)}
	if maxP == 0 && minTh == 0 && maxTh == 0 {
		row = append(row, "", "", "")
	} else {
		row = append(row, ftoa(maxP), ftoa(minTh), ftoa(maxTh))
	}
	row = append(row, ftoa(avg), strconv.Itoa(queueSize))
	se.writeRow(row)
}

// RecordDrop implements Sink: <name>_DroppedPkts.csv, header "Interval,
// DroppedPackets".
func (s *CSVSink) RecordDrop(name string, interval, dropped int) {
	se := s.open(s.dropped, name, "DroppedPkts", []string{"Interval", "DroppedPackets"})
	if se == nil {
		return
	}
	se.writeRow([]string{strconv.Itoa(interval), strconv.Itoa(dropped)})
}

// RecordBufferSize implements Sink: <name>_MaxBufferSize.csv, header
// "Interval, BufferSize, AvgBufferSize, MaxBufferSize". AvgBufferSize is
// the mean of every size sample seen so far for name (gonum/stat.Mean);
// MaxBufferSize is the running maximum.
func (s *CSVSink) RecordBufferSize(name string, interval, size int) {
	se := s.open(s.maxBuf, name, "MaxBufferSize", []string{"Interval", "BufferSize", "AvgBufferSize", "MaxBufferSize"})
	if se == nil {
		return
	}
	s.sizeHistory[name] = append(s.sizeHistory[name], float64(size))
	avg := stat.Mean(s.sizeHistory[name], nil)
	if float64(size) > s.runningMax[name] {
		s.runningMax[name] = float64(size)
	}
	se.writeRow([]string{strconv.Itoa(interval), strconv.Itoa(size), ftoa(avg), ftoa(s.runningMax[name])})
}

// Close flushes and closes every open file. Safe to call once at the end
// of a run.
func (s *CSVSink) Close() error {
	var firstErr error
	for _, store := range []map[string]*series{s.buffers, s.dropped, s.maxBuf} {
		for _, se := range store {
			se.w.Flush()
			if err := se.f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
