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

package fba_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stockparfait/fetch"

	"github.com/fieldbase/fieldbase/fba"
	"github.com/fieldbase/fieldbase/fba/fbatest"
	"github.com/fieldbase/fieldbase/table"

	. "github.com/smartystreets/goconvey/convey"
)

// sectors is the dataset of the end-to-end scenarios.
func sectors() *fbatest.Dataset {
	return &fbatest.Dataset{
		Schema: fba.Schema{
			{Name: "Sector Name", Type: "text"},
			{Name: "Org", Type: "reference"},
		},
		Rows: [][]fba.Value{
			{"Nutrition", "B"},
			{"WASH", "A"},
			{"Nutrition", "A"},
		},
		IDs: []string{"rec1", "rec2", "rec3"},
		RefCodes: map[string][]fba.Value{
			"Org": {"ORG-B", "ORG-A", "ORG-A"},
		},
	}
}

// numbers is a 10-row dataset for window composition tests.
func numbers() *fbatest.Dataset {
	d := &fbatest.Dataset{
		Schema: fba.Schema{{Name: "N", Type: "quantity"}},
	}
	for i := 1; i <= 10; i++ {
		d.Rows = append(d.Rows, []fba.Value{float64(i)})
		d.IDs = append(d.IDs, fmt.Sprintf("rec%d", i))
	}
	return d
}

func column(t *table.Table, name string) []string {
	var out []string
	for i := range t.Rows {
		out = append(out, table.FormatValue(t.Cell(i, name)))
	}
	return out
}

func TestCollect(t *testing.T) {
	t.Parallel()

	Convey("Collect against a fake deployment", t, func() {
		server := fbatest.NewServer()
		defer server.Close()
		server.Token = "testtoken"
		server.AddDataset("cxy123", sectors())
		server.AddDataset("numbers", numbers())

		ctx := fetch.UseClient(context.Background(), server.Client())
		ctx = fba.UseClient(ctx, server.URL(), "testtoken")

		Convey("filter + sort + head materializes the expected rows", func() {
			q, err := fba.NewQuery("cxy123")
			So(err, ShouldBeNil)
			q, err = q.Filter("Sector Name", "Nutrition")
			So(err, ShouldBeNil)
			q, err = q.Sort("Org", fba.Ascending)
			So(err, ShouldBeNil)
			q, err = q.Head(2)
			So(err, ShouldBeNil)

			tbl, err := q.Collect(ctx)
			So(err, ShouldBeNil)
			So(tbl.Columns, ShouldResemble, []string{"Sector Name", "Org"})
			So(column(tbl, "Sector Name"), ShouldResemble, []string{"Nutrition", "Nutrition"})
			So(column(tbl, "Org"), ShouldResemble, []string{"A", "B"})
		})

		Convey("select orders and de-duplicates columns", func() {
			q, err := fba.NewQuery("cxy123")
			So(err, ShouldBeNil)
			q, err = q.Select("Org", "*Name", "Org")
			So(err, ShouldBeNil)

			tbl, err := q.Collect(ctx)
			So(err, ShouldBeNil)
			So(tbl.Columns, ShouldResemble, []string{"Org", "Sector Name"})
			So(len(tbl.Rows), ShouldEqual, 3)
		})

		Convey("head then tail narrows the head window", func() {
			q, err := fba.NewQuery("numbers")
			So(err, ShouldBeNil)
			q, err = q.Head(7)
			So(err, ShouldBeNil)
			q, err = q.Tail(3)
			So(err, ShouldBeNil)

			tbl, err := q.Collect(ctx)
			So(err, ShouldBeNil)
			So(column(tbl, "N"), ShouldResemble, []string{"5", "6", "7"})

			Convey("and tail then head narrows from the tail window", func() {
				q, err := fba.NewQuery("numbers")
				So(err, ShouldBeNil)
				q, err = q.Tail(4)
				So(err, ShouldBeNil)
				q, err = q.Head(2)
				So(err, ShouldBeNil)

				tbl, err := q.Collect(ctx)
				So(err, ShouldBeNil)
				So(column(tbl, "N"), ShouldResemble, []string{"7", "8"})
			})

			Convey("window offset and limit apply last", func() {
				q, err := fba.NewQuery("numbers")
				So(err, ShouldBeNil)
				q, err = q.Head(8)
				So(err, ShouldBeNil)
				q, err = q.Window(2, 3)
				So(err, ShouldBeNil)

				tbl, err := q.Collect(ctx)
				So(err, ShouldBeNil)
				So(column(tbl, "N"), ShouldResemble, []string{"3", "4", "5"})
			})
		})

		Convey("column styles", func() {
			base, err := fba.NewQuery("cxy123")
			So(err, ShouldBeNil)

			Convey("add exactly the documented metadata columns", func() {
				tbl, err := base.WithStyle(
					fba.Style{RecordIDs: true, ReferenceCodes: true}).Collect(ctx)
				So(err, ShouldBeNil)
				So(tbl.Columns, ShouldResemble,
					[]string{"@id", "Sector Name", "Org", "Org.@code"})
				So(column(tbl, "@id"), ShouldResemble, []string{"rec1", "rec2", "rec3"})
				So(column(tbl, "Org.@code"), ShouldResemble,
					[]string{"ORG-B", "ORG-A", "ORG-A"})
			})

			Convey("and no others without the style", func() {
				tbl, err := base.Collect(ctx)
				So(err, ShouldBeNil)
				So(tbl.Columns, ShouldResemble, []string{"Sector Name", "Org"})
			})

			Convey("never alter row semantics", func() {
				q, err := base.Filter("Sector Name", "Nutrition")
				So(err, ShouldBeNil)
				q, err = q.Sort("Org", fba.Ascending)
				So(err, ShouldBeNil)
				tbl, err := q.WithStyle(fba.Style{RecordIDs: true}).Collect(ctx)
				So(err, ShouldBeNil)
				So(column(tbl, "@id"), ShouldResemble, []string{"rec3", "rec1"})
				So(column(tbl, "Org"), ShouldResemble, []string{"A", "B"})
			})
		})

		Convey("paging is transparent and ordered", func() {
			q, err := fba.NewQuery("numbers")
			So(err, ShouldBeNil)
			before := server.RequestCount()
			tbl, err := q.PerPage(3).Collect(ctx)
			So(err, ShouldBeNil)
			So(len(tbl.Rows), ShouldEqual, 10)
			So(column(tbl, "N"), ShouldResemble,
				[]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"})
			So(server.RequestCount()-before, ShouldEqual, 4)
		})

		Convey("Rows streams with transparent paging", func() {
			q, err := fba.NewQuery("numbers")
			So(err, ShouldBeNil)
			it := q.PerPage(4).Rows(ctx)
			var got []string
			for {
				row, ok := it.Next()
				if !ok {
					break
				}
				v, _ := row.Get("N")
				got = append(got, table.FormatValue(v))
			}
			So(it.Err(), ShouldBeNil)
			So(got, ShouldResemble,
				[]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"})
			So(it.Schema(), ShouldResemble, fba.Schema{{Name: "N", Type: "quantity"}})
		})

		Convey("repeat Collect returns the cached table without a request", func() {
			q, err := fba.NewQuery("cxy123")
			So(err, ShouldBeNil)
			tbl, err := q.Collect(ctx)
			So(err, ShouldBeNil)
			count := server.RequestCount()

			tbl2, err := q.Collect(ctx)
			So(err, ShouldBeNil)
			So(tbl2, ShouldEqual, tbl)
			So(server.RequestCount(), ShouldEqual, count)
		})

		Convey("grammar violations never reach the server", func() {
			before := server.RequestCount()
			q, err := fba.NewQuery("cxy123")
			So(err, ShouldBeNil)
			q, err = q.Head(1)
			So(err, ShouldBeNil)
			_, err = q.Filter("Org", "A")
			So(err, ShouldHaveSameTypeAs, &fba.OperationOrderError{})
			So(server.RequestCount(), ShouldEqual, before)
		})

		Convey("remote failures", func() {
			Convey("unknown source", func() {
				q, err := fba.NewQuery("nosuchform")
				So(err, ShouldBeNil)
				_, err = q.Collect(ctx)
				So(err, ShouldHaveSameTypeAs, &fba.RemoteQueryError{})
				So(err.(*fba.RemoteQueryError).Code, ShouldEqual, "NOT_FOUND")
			})

			Convey("bad token", func() {
				badCtx := fba.UseClient(ctx, server.URL(), "wrong")
				q, err := fba.NewQuery("cxy123")
				So(err, ShouldBeNil)
				_, err = q.Collect(badCtx)
				So(err, ShouldHaveSameTypeAs, &fba.RemoteQueryError{})
				So(err.(*fba.RemoteQueryError).Code, ShouldEqual, "UNAUTHORIZED")
			})
		})
	})
}
