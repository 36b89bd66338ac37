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

package table

import (
	"bytes"
	"testing"

	"github.com/Velocidex/ordereddict"

	. "github.com/smartystreets/goconvey/convey"
)

func row(sector, org string, amount float64) *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Sector", sector).
		Set("Org", org).
		Set("Amount", amount)
}

func orgs(t *Table) []string {
	var out []string
	for i := range t.Rows {
		out = append(out, FormatValue(t.Cell(i, "Org")))
	}
	return out
}

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Table methods work", t, func() {
		tbl := New("Sector", "Org", "Amount")
		tbl.AddRow(
			row("Nutrition", "B", 120),
			row("WASH", "A", 40.5),
			row("Nutrition", "A", 7),
			row("Health", "C", 300),
		)

		Convey("AddRow worked", func() {
			So(len(tbl.Rows), ShouldEqual, 4)
			So(tbl.Columns, ShouldResemble, []string{"Sector", "Org", "Amount"})
		})

		Convey("Cell", func() {
			So(tbl.Cell(0, "Org"), ShouldEqual, "B")
			So(tbl.Cell(1, "Amount"), ShouldEqual, 40.5)
			So(tbl.Cell(0, "NoSuchColumn"), ShouldBeNil)
			So(tbl.Cell(99, "Org"), ShouldBeNil)
		})

		Convey("Where keeps matching rows and the original intact", func() {
			t2 := tbl.Where("Sector", "Nutrition")
			So(orgs(t2), ShouldResemble, []string{"B", "A"})
			So(len(tbl.Rows), ShouldEqual, 4)

			Convey("numbers match by their formatted form", func() {
				So(len(tbl.Where("Amount", "40.5").Rows), ShouldEqual, 1)
				So(len(tbl.Where("Amount", "120").Rows), ShouldEqual, 1)
			})
		})

		Convey("SortBy", func() {
			Convey("single string key", func() {
				t2 := tbl.SortBy(SortKey{Column: "Org"})
				So(orgs(t2), ShouldResemble, []string{"A", "A", "B", "C"})
			})

			Convey("numeric key, descending", func() {
				t2 := tbl.SortBy(SortKey{Column: "Amount", Desc: true})
				So(orgs(t2), ShouldResemble, []string{"C", "B", "A", "A"})
			})

			Convey("multi-column", func() {
				t2 := tbl.SortBy(SortKey{Column: "Org"}, SortKey{Column: "Amount", Desc: true})
				So(orgs(t2), ShouldResemble, []string{"A", "A", "B", "C"})
				So(t2.Cell(0, "Amount"), ShouldEqual, 40.5)
				So(t2.Cell(1, "Amount"), ShouldEqual, 7.0)
			})
		})

		Convey("Head and Tail clamp to the table size", func() {
			So(orgs(tbl.Head(2)), ShouldResemble, []string{"B", "A"})
			So(orgs(tbl.Tail(2)), ShouldResemble, []string{"A", "C"})
			So(len(tbl.Head(100).Rows), ShouldEqual, 4)
			So(len(tbl.Tail(100).Rows), ShouldEqual, 4)
			So(len(tbl.Head(-1).Rows), ShouldEqual, 0)
		})

		Convey("WriteCSV", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(tbl.Head(2).WriteCSV(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
Sector,Org,Amount
Nutrition,B,120
WASH,A,40.5
`)
			})

			Convey("Limited rows, no header", func() {
				var buf bytes.Buffer
				So(tbl.WriteCSV(&buf, Params{Rows: 1, NoHeader: true}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
Nutrition,B,120
`)
			})
		})

		Convey("WriteText", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(tbl.Head(2).WriteText(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
   Sector | Org | Amount
--------- | --- | ------
Nutrition |   B |    120
     WASH |   A |   40.5
`)
			})

			Convey("Limited rows and width, no header", func() {
				var buf bytes.Buffer
				So(tbl.WriteText(&buf, Params{Rows: 1, NoHeader: true, MaxColWidth: 4}),
					ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
Nu.. | B | 120
`)
			})

			Convey("Invalid MaxColWidth", func() {
				var buf bytes.Buffer
				So(tbl.WriteText(&buf, Params{MaxColWidth: 3}), ShouldNotBeNil)
			})
		})

		Convey("FormatValue", func() {
			So(FormatValue(nil), ShouldEqual, "")
			So(FormatValue("x"), ShouldEqual, "x")
			So(FormatValue(42.0), ShouldEqual, "42")
			So(FormatValue(2.5), ShouldEqual, "2.5")
			So(FormatValue(true), ShouldEqual, "true")
		})
	})
}
