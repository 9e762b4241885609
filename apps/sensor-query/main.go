// Copyright 2025 Sensortable

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/sensortable/sensortable/clean"
	"github.com/sensortable/sensortable/query"
	"github.com/sensortable/sensortable/sensor"
	"github.com/sensortable/sensortable/table"
	"github.com/sensortable/sensortable/times"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	ConfDir  string // default: ~/.sensortable
	LogLevel logging.Level
	// Exactly one of ranged, first, last, entities or events must be present.
	Ranged   bool
	First    bool
	Last     bool
	Entities bool
	Events   bool
	Device   string // required for the point queries
	Sensors  string // comma-separated sensor ids; default: all
	Filter   string // comma-separated entity ids or names
	Start    string // start time; default: now
	End      string // end time; default: now
	N        int    // points per sensor for -last
	CSV      bool   // dump CSV format; default: text.
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("sensor-query", flag.ExitOnError)
	fs.StringVar(&flags.ConfDir, "config",
		filepath.Join(os.Getenv("HOME"), ".sensortable"),
		"configuration path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.BoolVar(&flags.Ranged, "range", false, "print the pivoted range table")
	fs.BoolVar(&flags.First, "first", false, "print the first point per sensor")
	fs.BoolVar(&flags.Last, "last", false, "print the last -n points per sensor")
	fs.BoolVar(&flags.Entities, "entities", false, "print the entity listing")
	fs.BoolVar(&flags.Events, "events", false, "print the event listing")
	fs.StringVar(&flags.Device, "device", "", "device id to query")
	fs.StringVar(&flags.Sensors, "sensors", "",
		"comma-separated sensor ids; default: all device sensors")
	fs.StringVar(&flags.Filter, "filter", "",
		"comma-separated entity ids or names to keep")
	fs.StringVar(&flags.Start, "start", "", "start time; default: now")
	fs.StringVar(&flags.End, "end", "", "end time; default: now")
	fs.IntVar(&flags.N, "n", 1, "points per sensor for -last")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	kinds := 0
	for _, b := range []bool{flags.Ranged, flags.First, flags.Last,
		flags.Entities, flags.Events} {
		if b {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, errors.Reason(
			"expected exactly one of -range, -first, -last, -entities or -events")
	}
	if (flags.Ranged || flags.First || flags.Last) && flags.Device == "" {
		return nil, errors.Reason("missing required -device argument")
	}
	return &flags, err
}

type Config struct {
	UserID string `toml:"user_id"` // platform user id
	OnPrem bool   `toml:"on_prem"` // use the on-premises endpoint
	TZ     string `toml:"tz"`      // display timezone; default: UTC
}

func parseConfig(confdir string) (*Config, error) {
	filePath := filepath.Join(confdir, "config.toml")
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := `user_id = "YourSensortableUserId"
on_prem = false
tz = "UTC"
`
			err = errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sample)
			return nil, err
		} else {
			return nil, errors.Annotate(err,
				"cannot check config file for existence: '%s'", filePath)
		}
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	if c.UserID == "" {
		return nil, errors.Reason("missing user_id in %s", filePath)
	}
	return &c, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func sensorIDs(s string) []sensor.ID {
	var ids []sensor.ID
	for _, p := range splitCSV(s) {
		ids = append(ids, sensor.ID(p))
	}
	return ids
}

// timeArg converts an optional time flag to a query time input: empty means
// "now", an all-digits value is epoch milliseconds, anything else is passed
// through as a calendar date.
func timeArg(s string) interface{} {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func entitiesTable(ctx context.Context, cfg query.Config, filter []string) *table.Table {
	tbl := table.New("entity", "name", "device")
	for _, e := range query.Entities(ctx, cfg, filter) {
		tbl.AddRow(table.Cells{e.ID, e.Name, e.Device})
	}
	return tbl
}

func eventsTable(ctx context.Context, cfg query.Config, loc *time.Location) *table.Table {
	tbl := table.New("time", "event", "type", "device", "message")
	for _, e := range query.Events(ctx, cfg) {
		var ts string
		if e.Time > 0 {
			ts = times.Millis(e.Time).ToTime().In(loc).Format("2006-01-02 15:04:05")
		}
		tbl.AddRow(table.Cells{ts, e.ID, e.Kind, e.Device, e.Message})
	}
	return tbl
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.ConfDir)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	loc := time.UTC
	if config.TZ != "" {
		if loc, err = time.LoadLocation(config.TZ); err != nil {
			return errors.Annotate(err, "bad tz '%s' in config", config.TZ)
		}
	}
	cfg := query.Config{UserID: config.UserID, OnPrem: config.OnPrem, TZ: config.TZ}
	ids := sensorIDs(flags.Sensors)

	var tbl *table.Table
	switch {
	case flags.Ranged:
		rows := query.Range(ctx, cfg, flags.Device, ids,
			timeArg(flags.Start), timeArg(flags.End))
		tbl = table.FromWide(clean.SortByTime(rows), loc)
	case flags.First:
		tbl = table.FromRecords(query.FirstPoints(
			ctx, cfg, flags.Device, ids, timeArg(flags.Start)), loc)
	case flags.Last:
		tbl = table.FromRecords(query.PointsBefore(
			ctx, cfg, flags.Device, ids, timeArg(flags.End), flags.N), loc)
	case flags.Entities:
		tbl = entitiesTable(ctx, cfg, splitCSV(flags.Filter))
	case flags.Events:
		tbl = eventsTable(ctx, cfg, loc)
	}
	if tbl == nil {
		return errors.Reason("no data")
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
