// Copyright 2025 FieldBase

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
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/fieldbase/fieldbase/fba"
	"github.com/fieldbase/fieldbase/table"
)

// filterList accumulates repeated -filter Col=value flags.
type filterList [][2]string

func (f *filterList) String() string {
	parts := make([]string, len(*f))
	for i, kv := range *f {
		parts[i] = kv[0] + "=" + kv[1]
	}
	return strings.Join(parts, ",")
}

func (f *filterList) Set(s string) error {
	col, value, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return errors.Reason("filter must have the form Column=value: %q", s)
	}
	*f = append(*f, [2]string{col, value})
	return nil
}

type Flags struct {
	Config   string // default: ~/.fieldbase/config.toml
	Source   string // required
	Select   string // comma-separated column patterns
	Filters  filterList
	Sort     string // Column.asc or Column.desc
	Head     int
	Tail     int
	CSV      bool // dump CSV format; default: text
	MaxRows  int
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("fieldbase-query", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config",
		filepath.Join(os.Getenv("HOME"), ".fieldbase", "config.toml"),
		"path to the deployment config")
	fs.StringVar(&flags.Source, "source", "", "form reference to query (required)")
	fs.StringVar(&flags.Select, "select", "",
		"comma-separated column patterns, e.g. 'Sector Name,*Code'")
	fs.Var(&flags.Filters, "filter",
		"equality filter Column=value; may be repeated (filters are ANDed)")
	fs.StringVar(&flags.Sort, "sort", "", "sort column: Column.asc or Column.desc")
	fs.IntVar(&flags.Head, "head", 0, "keep only the first N rows")
	fs.IntVar(&flags.Tail, "tail", 0, "keep only the last N rows")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.IntVar(&flags.MaxRows, "max-rows", 0, "max. number of rows to print; 0 = all")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Source == "" {
		return nil, errors.Reason("missing required -source argument")
	}
	return &flags, nil
}

type Config struct {
	Endpoint string    `toml:"endpoint"`
	Token    string    `toml:"token"`
	Style    fba.Style `toml:"style"`
}

func parseConfig(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := `endpoint = "https://acme.fieldbase.org/api"
token = "YourSecretAPIToken"

[style]
ids = false
codes = true
`
			err = errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sample)
			return nil, err
		}
		return nil, errors.Annotate(err,
			"cannot check config file for existence: '%s'", filePath)
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
	if c.Endpoint == "" || c.Token == "" {
		return nil, errors.Reason("config %s must set endpoint and token", filePath)
	}
	return &c, nil
}

// buildQuery assembles the deferred query from the flags, in the order the
// server's grammar requires.
func buildQuery(flags *Flags, style fba.Style) (*fba.Query, error) {
	q, err := fba.NewQuery(flags.Source)
	if err != nil {
		return nil, err
	}
	if flags.Select != "" {
		if q, err = q.Select(strings.Split(flags.Select, ",")...); err != nil {
			return nil, err
		}
	}
	for _, kv := range flags.Filters {
		if q, err = q.Filter(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	if flags.Sort != "" {
		col, dir, ok := strings.Cut(flags.Sort, ".")
		if !ok {
			return nil, errors.Reason(
				"sort must have the form Column.asc or Column.desc: %q", flags.Sort)
		}
		if q, err = q.Sort(col, fba.SortDirection(dir)); err != nil {
			return nil, err
		}
	}
	if flags.Head > 0 {
		if q, err = q.Head(flags.Head); err != nil {
			return nil, err
		}
	}
	if flags.Tail > 0 {
		if q, err = q.Tail(flags.Tail); err != nil {
			return nil, err
		}
	}
	return q.WithStyle(style), nil
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	ctx = fba.UseClient(ctx, config.Endpoint, config.Token)

	q, err := buildQuery(flags, config.Style)
	if err != nil {
		return errors.Annotate(err, "failed to build query")
	}
	tbl, err := q.Collect(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to collect query")
	}
	logging.Infof(ctx, "collected %d rows from %s", len(tbl.Rows), flags.Source)

	params := table.Params{Rows: flags.MaxRows}
	if flags.CSV {
		err = tbl.WriteCSV(w, params)
	} else {
		err = tbl.WriteText(w, params)
	}
	if err != nil {
		return errors.Annotate(err, "failed to write table")
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

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
