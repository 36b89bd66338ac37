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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"

	"github.com/fieldbase/fieldbase/fba"
	"github.com/fieldbase/fieldbase/fba/fbatest"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_fieldbase_query")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		flags, err := parseFlags([]string{
			"-config", "path/to/config.toml", "-source", "cxy123",
			"-select", "Sector Name,Org",
			"-filter", "Sector Name=Nutrition", "-filter", "Org=A",
			"-sort", "Org.asc", "-head", "5", "-csv", "-log-level", "warning"})
		So(err, ShouldBeNil)
		So(flags.Config, ShouldEqual, "path/to/config.toml")
		So(flags.Source, ShouldEqual, "cxy123")
		So(flags.Filters, ShouldResemble,
			filterList{{"Sector Name", "Nutrition"}, {"Org", "A"}})
		So(flags.CSV, ShouldBeTrue)
		So(flags.LogLevel, ShouldEqual, logging.Warning)

		Convey("source is required", func() {
			_, err := parseFlags([]string{})
			So(err, ShouldNotBeNil)
		})

		Convey("malformed filter is rejected by the flag value", func() {
			var f filterList
			So(f.Set("nofilter"), ShouldNotBeNil)
			So(f.Set("=value"), ShouldNotBeNil)
			So(f.Set("Org=A"), ShouldBeNil)
			So(f.String(), ShouldEqual, "Org=A")
		})
	})

	Convey("parseConfig", t, func() {
		fileName := filepath.Join(tmpdir, "config.toml")
		So(os.WriteFile(fileName, []byte(`endpoint = "https://acme.fieldbase.org/api"
token = "testToken"

[style]
ids = true
codes = true
`), 0644), ShouldBeNil)
		c, err := parseConfig(fileName)
		So(err, ShouldBeNil)
		So(c.Endpoint, ShouldEqual, "https://acme.fieldbase.org/api")
		So(c.Token, ShouldEqual, "testToken")
		So(c.Style, ShouldResemble, fba.Style{RecordIDs: true, ReferenceCodes: true})

		Convey("missing file suggests a sample", func() {
			_, err := parseConfig(filepath.Join(tmpdir, "nosuch.toml"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("buildQuery applies operations in grammar order", t, func() {
		flags := &Flags{
			Source:  "cxy123",
			Select:  "Sector Name,Org",
			Filters: filterList{{"Sector Name", "Nutrition"}},
			Sort:    "Org.asc",
			Head:    5,
		}
		q, err := buildQuery(flags, fba.Style{})
		So(err, ShouldBeNil)
		v := q.Values()
		So(v["select"], ShouldResemble, []string{"Sector Name,Org"})
		So(v["filter.Sector Name"], ShouldResemble, []string{"Nutrition"})
		So(v["sort"], ShouldResemble, []string{"Org.asc"})
		So(v["window"], ShouldResemble, []string{"head:5"})

		Convey("bad sort spec", func() {
			_, err := buildQuery(&Flags{Source: "s", Sort: "Org"}, fba.Style{})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("run collects and prints the table", t, func() {
		server := fbatest.NewServer()
		defer server.Close()
		server.AddDataset("cxy123", &fbatest.Dataset{
			Schema: fba.Schema{
				{Name: "Sector Name", Type: "text"},
				{Name: "Org", Type: "text"},
			},
			Rows: [][]fba.Value{
				{"Nutrition", "B"},
				{"WASH", "A"},
				{"Nutrition", "A"},
			},
		})

		fileName := filepath.Join(tmpdir, "run_config.toml")
		So(os.WriteFile(fileName, []byte(
			"endpoint = \""+server.URL()+"\"\ntoken = \"t\"\n"), 0644), ShouldBeNil)

		ctx := fetch.UseClient(context.Background(), server.Client())
		flags := &Flags{
			Config:  fileName,
			Source:  "cxy123",
			Filters: filterList{{"Sector Name", "Nutrition"}},
			Sort:    "Org.asc",
			CSV:     true,
		}
		var buf bytes.Buffer
		So(run(ctx, flags, &buf), ShouldBeNil)
		So("\n"+buf.String(), ShouldEqual, `
Sector Name,Org
Nutrition,A
Nutrition,B
`)
	})
}
