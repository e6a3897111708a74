package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.InitWithWriter(io.Discard, "text")
}

const chartJSON = `{"chart":{"result":[{"meta":{"symbol":"IRBT","currency":"USD","exchangeName":"NMS",
"regularMarketPrice":3.8,"fiftyTwoWeekHigh":"13.06","fiftyTwoWeekLow":3.1},
"timestamp":[1735828200,1735914600,1736173800],
"indicators":{"quote":[{"open":[8.1,7.9,null],"high":[8.3,8.0,null],"low":[7.9,7.6,null],
"close":[8.0,7.7,null],"volume":[1200000,980000,null]}]}}],"error":null}}`

const submissionsJSON = `{"name":"IROBOT CORP","sic":"3630","sicDescription":"Household Appliances",
"tickers":["IRBT"],"exchanges":["Nasdaq"],"fiscalYearEnd":"1228",
"filings":{"recent":{"form":["8-K","4","10-Q","10-K"],
"filingDate":["2025-03-12","2025-03-10","2024-11-06","2024-03-13"],
"accessionNumber":["a1","a2","a3","a4"],
"primaryDocDescription":["8-K","FORM 4","10-Q","10-K"]}}}`

const companyFactsJSON = `{"facts":{"us-gaap":{
"Revenues":{"units":{"USD":[
 {"start":"2024-09-29","end":"2024-12-28","val":172000000,"fy":2024,"fp":"FY","form":"10-K","filed":"2025-03-12"},
 {"start":"2023-12-31","end":"2024-12-28","val":681800000,"fy":2024,"fp":"FY","form":"10-K","filed":"2025-03-12"},
 {"start":"2023-01-01","end":"2023-12-30","val":890600000,"fy":2024,"fp":"FY","form":"10-K","filed":"2025-03-12"},
 {"start":"2023-01-01","end":"2023-12-30","val":890600000,"fy":2023,"fp":"FY","form":"10-K","filed":"2024-03-13"},
 {"start":"2024-06-30","end":"2024-09-28","val":193400000,"fy":2024,"fp":"Q3","form":"10-Q","filed":"2024-11-06"}]}},
"EarningsPerShareBasic":{"units":{"USD/shares":[
 {"end":"2024-12-28","val":-5.42,"fy":null,"fp":"FY","form":"10-K","filed":"2025-03-12"}]}}}}}`

func workbook(t *testing.T) []byte {
	f := excelize.NewFile()
	rows := [][]any{
		{"Global Supply Chain Pressure Index"},
		{},
		{"Date", "GSCPI"},
		{"2024-11-30", 0.12},
		{"2024-12-31", -0.05},
		{"2025-01-31", "n/a"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		if len(row) > 0 {
			require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type upstream struct {
	srv     *httptest.Server
	headers http.Header
	queries map[string]string
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{queries: map[string]string{}}
	xlsx := workbook(t)
	mux := http.NewServeMux()
	write := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u.headers = r.Header.Clone()
			u.queries[r.URL.Path] = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}
	}
	mux.HandleFunc("/v8/finance/chart/IRBT", write(chartJSON))
	mux.HandleFunc("/v8/finance/chart/NONE", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/fred/series/observations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series_id") == "BROKEN" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"observations":[{"date":"2025-01-01","value":"4.0"},{"date":"2025-02-01","value":"."},{"date":"2025-03-01","value":"4.2"}]}`)
	})
	mux.HandleFunc("/graph/fredgraph.csv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "observation_date,UNRATE\n2025-01-01,4.0\n2025-02-01,.\n2025-03-01,4.2\n2025-04-01,\n")
	})
	mux.HandleFunc("/submissions/CIK0001159167.json", write(submissionsJSON))
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0001159167.json", write(companyFactsJSON))
	mux.HandleFunc("/api/v1/patent/", write(`{"patents":[
		{"patent_id":"12000001","patent_title":"Mobile cleaning robot","patent_date":"2025-01-07"},
		{"patent_number":"11900002","patent_title":"Docking station","patent_date":"2024-06-04","patent_type":"utility"}],
		"total_hits":412}`))
	mux.HandleFunc("/entity-information/v3/entities", write(`{"totalRecords":1,"entityData":[{"entityRegistration":
		{"ueiSAM":"ABC123","legalBusinessName":"IROBOT CORPORATION","cageCode":"1XYZ2","registrationStatus":"Active",
		"registrationExpirationDate":"2025-09-30"}}]}`))
	mux.HandleFunc("/entity-information/v2/exclusions", write(`{"totalRecords":"0","excludedEntity":[]}`))
	mux.HandleFunc("/api/enforcement/osha_inspection", write(`{"results":[
		{"activity_nr":1234567,"estab_name":"IROBOT CORP","open_date":"2019-05-01","site_state":"MA","total_violations":"2"},
		{"activity_nr":"7654321","estab_name":"IROBOT CORP","open_date":"2021-02-11","site_state":"MA","total_violations":0}]}`))
	mux.HandleFunc("/echo/dfr_rest_services.get_facility_info", write(`{"Results":{"Message":"Success","Facilities":[
		{"FacName":"IROBOT CORP","FacAddr":"8 CROSBY DR","FacCity":"BEDFORD","FacState":"MA","CurrSvFlag":"N"},
		{"FacName":"IROBOT WAREHOUSE","FacAddr":"1 MAIN ST","FacCity":"BURLINGTON","FacState":"MA","CurrSvFlag":"Y"}]}}`))
	mux.HandleFunc("/v2/country/USA;CHN;DEU;JPN/indicator/LP.LPI.OVRL.XQ", write(`[{"page":1,"pages":1},[
		{"country":{"id":"US","value":"United States"},"countryiso3code":"USA","date":"2023","value":3.8},
		{"country":{"id":"CN","value":"China"},"countryiso3code":"CHN","date":"2023","value":3.7},
		{"country":{"id":"CN","value":"China"},"countryiso3code":"CHN","date":"2020","value":null}]]`))
	mux.HandleFunc("/gscpi.xlsx", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(xlsx)
	})
	mux.HandleFunc("/data/timeseries/intltrade/imports/hs", write(`[["I_COMMODITY","I_COMMODITY_LDESC","GEN_VAL_MO","COMM_LVL","time"],
		["85","ELECTRICAL MACHINERY","41000000000","HS2","2025-06"],
		["84","NUCLEAR REACTORS, BOILERS, MACHINERY","52000000000","HS2","2025-06"],
		["XX","BAD ROW","n/a","HS2","2025-06"]]`))
	mux.HandleFunc("/shipments.json", write(`{"total_shipments":120,"yearly":[{"year":2023,"count":80},{"year":2024,"count":40}],
		"suppliers":[{"name":"Foxconn","country":"VN","share_pct":60}]}`))
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) endpoints() collector.Endpoints {
	return collector.Endpoints{
		Yahoo: u.srv.URL, FREDAPI: u.srv.URL, FREDGraph: u.srv.URL, SEC: u.srv.URL,
		Patents: u.srv.URL, SAM: u.srv.URL, DOL: u.srv.URL, EPA: u.srv.URL,
		WorldBank: u.srv.URL, GSCPI: u.srv.URL + "/gscpi.xlsx", Census: u.srv.URL,
	}
}

func source(t *testing.T, name string, s collector.Settings) collector.Source {
	srcs, err := collector.Build([]string{name}, collector.NewClient(collector.WithUserAgent("riskdiag test@example.com")), s)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	return srcs[0]
}

func baseQuery() collector.Query {
	return collector.Query{
		Company: "iRobot Corporation",
		Ticker:  "IRBT",
		CIK:     "1159167",
		Start:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		AsOf:    time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		Series:  []string{"UNRATE"},
	}
}

func TestQueryHelpers(t *testing.T) {
	Convey("Given a query", t, func() {
		q := baseQuery()
		So(q.CIK10(), ShouldEqual, "0001159167")
		So(q.ShortName(), ShouldEqual, "iRobot")
		q.Company = "SurPath, Inc."
		So(q.ShortName(), ShouldEqual, "SurPath")
	})
}

func TestBuild(t *testing.T) {
	Convey("Given source names", t, func() {
		c := collector.NewClient()

		Convey("When every known name is built", func() {
			names := []string{"stock", "fred", "sec", "patents", "sam", "osha", "epa", "worldbank", "gscpi", "census", "shipments", "reviews", "news"}
			srcs, err := collector.Build(names, c, collector.Settings{Endpoints: collector.DefaultEndpoints()})
			So(err, ShouldBeNil)
			So(len(srcs), ShouldEqual, len(names))
			for i, s := range srcs {
				So(s.Name(), ShouldEqual, names[i])
			}
		})

		Convey("When a name is unknown", func() {
			_, err := collector.Build([]string{"stock", "importyeti"}, c, collector.Settings{})
			So(errors.Is(err, collector.ErrUnknownSource), ShouldBeTrue)
		})
	})
}

func TestStockSource(t *testing.T) {
	u := newUpstream(t)
	ctx := context.Background()
	src := source(t, collector.SourceStock, collector.Settings{Endpoints: u.endpoints()})

	Convey("Given the chart API", t, func() {
		Convey("When IRBT is collected", func() {
			ds, err := src.Collect(ctx, baseQuery())
			So(err, ShouldBeNil)

			Convey("Then null closes are dropped and bars are kept", func() {
				obs := ds.Series[0].Observations
				So(len(obs), ShouldEqual, 2)
				So(obs[0].Bar.Volume, ShouldEqual, 1200000)
				So(obs[1].Value, ShouldEqual, 7.7)
				So(obs[0].Date.Format(model.DateLayout), ShouldEqual, "2025-01-02")
			})

			Convey("And the meta coerces loose values", func() {
				meta := ds.Documents[0].Value.(collector.StockMeta)
				So(meta.FiftyTwoWeekHigh, ShouldEqual, 13.06)
				So(meta.Exchange, ShouldEqual, "NMS")
				So(meta.Sessions, ShouldEqual, 2)
				So(u.headers.Get("User-Agent"), ShouldEqual, "riskdiag test@example.com")
			})
		})

		Convey("When there is no ticker", func() {
			q := baseQuery()
			q.Ticker = ""
			_, err := src.Collect(ctx, q)
			So(errors.Is(err, collector.ErrNotApplicable), ShouldBeTrue)
		})

		Convey("When the upstream answers 404", func() {
			q := baseQuery()
			q.Ticker = "NONE"
			_, err := src.Collect(ctx, q)
			So(errors.Is(err, collector.ErrSourceUnavailable), ShouldBeTrue)
		})
	})
}

func TestFREDSource(t *testing.T) {
	u := newUpstream(t)
	ctx := context.Background()

	Convey("Given FRED", t, func() {
		Convey("When a key is configured", func() {
			src := source(t, collector.SourceFRED, collector.Settings{Endpoints: u.endpoints(), Keys: collector.Keys{FRED: "k"}})
			q := baseQuery()
			q.Series = []string{"UNRATE", "BROKEN"}
			ds, err := src.Collect(ctx, q)

			Convey("Then the API is used and placeholders are skipped", func() {
				So(err, ShouldBeNil)
				So(len(ds.Series), ShouldEqual, 1)
				So(ds.Series[0].Name, ShouldEqual, "fred_UNRATE.csv")
				So(model.Values(ds.Series[0].Observations), ShouldResemble, []float64{4.0, 4.2})
				So(u.queries["/fred/series/observations"], ShouldContainSubstring, "observation_start=2020-01-01")
			})

			Convey("And the failed series is noted", func() {
				So(len(ds.Notes), ShouldEqual, 1)
				So(ds.Notes[0], ShouldContainSubstring, "BROKEN")
			})
		})

		Convey("When no key is configured", func() {
			src := source(t, collector.SourceFRED, collector.Settings{Endpoints: u.endpoints()})
			ds, err := src.Collect(ctx, baseQuery())

			Convey("Then the public CSV is read instead", func() {
				So(err, ShouldBeNil)
				So(model.Values(ds.Series[0].Observations), ShouldResemble, []float64{4.0, 4.2})
				So(u.queries["/graph/fredgraph.csv"], ShouldContainSubstring, "cosd=2020-01-01")
			})
		})

		Convey("When every series fails", func() {
			src := source(t, collector.SourceFRED, collector.Settings{Endpoints: u.endpoints(), Keys: collector.Keys{FRED: "k"}})
			q := baseQuery()
			q.Series = []string{"BROKEN"}
			_, err := src.Collect(ctx, q)
			So(errors.Is(err, collector.ErrSourceUnavailable), ShouldBeTrue)
		})
	})
}

func TestSECSource(t *testing.T) {
	u := newUpstream(t)
	src := source(t, collector.SourceSEC, collector.Settings{Endpoints: u.endpoints()})

	Convey("Given EDGAR", t, func() {
		ds, err := src.Collect(context.Background(), baseQuery())
		So(err, ShouldBeNil)
		So(len(ds.Documents), ShouldEqual, 2)

		Convey("Then only periodic and event filings are kept", func() {
			filings := ds.Documents[0].Value.(collector.SECFilings)
			So(filings.Name, ShouldEqual, "IROBOT CORP")
			So(filings.CIK, ShouldEqual, "0001159167")
			So(len(filings.Filings), ShouldEqual, 3)
			So(filings.Filings[0].Form, ShouldEqual, "8-K")
		})

		Convey("Then annual facts hold one full-year value per period year", func() {
			x := ds.Documents[1].Value.(collector.SECXBRL)
			rev := x.Concepts["Revenues"]
			So(rev.Unit, ShouldEqual, "USD")
			So(len(rev.Annual), ShouldEqual, 2)
			So(rev.Annual[0].Value, ShouldEqual, 681800000)
			So(rev.Annual[0].Start, ShouldEqual, "2023-12-31")
			So(rev.Annual[1].End, ShouldEqual, "2023-12-30")
			So(rev.Annual[1].FY, ShouldEqual, 2024)
			So(len(rev.Quarterly), ShouldEqual, 1)

			eps := x.Concepts["EarningsPerShareBasic"]
			So(eps.Unit, ShouldEqual, "USD/shares")
			So(eps.Annual[0].FY, ShouldEqual, 0)
		})
	})
}

func TestRegistrySources(t *testing.T) {
	u := newUpstream(t)
	ctx := context.Background()
	q := baseQuery()

	Convey("Given the registry sources", t, func() {
		Convey("When patents has no key", func() {
			_, err := source(t, collector.SourcePatents, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(errors.Is(err, collector.ErrMissingKey), ShouldBeTrue)
		})

		Convey("When patents has a key", func() {
			ds, err := source(t, collector.SourcePatents, collector.Settings{Endpoints: u.endpoints(), Keys: collector.Keys{Patents: "pk"}}).Collect(ctx, q)
			So(err, ShouldBeNil)
			sum := ds.Documents[0].Value.(collector.PatentSummary)
			So(sum.Total, ShouldEqual, 412)
			So(sum.ByYear, ShouldResemble, map[string]int{"2025": 1, "2024": 1})
			So(sum.Recent[1].Number, ShouldEqual, "11900002")
			So(u.headers.Get("X-Api-Key"), ShouldEqual, "pk")
		})

		Convey("When SAM has a key", func() {
			ds, err := source(t, collector.SourceSAM, collector.Settings{Endpoints: u.endpoints(), Keys: collector.Keys{SAM: "sk"}}).Collect(ctx, q)
			So(err, ShouldBeNil)
			rec := ds.Documents[0].Value.(collector.SAMRecord)
			So(len(rec.Entities), ShouldEqual, 1)
			So(rec.Entities[0].CAGECode, ShouldEqual, "1XYZ2")
			So(rec.ExclusionsRead, ShouldBeTrue)
			So(rec.ExclusionCount, ShouldEqual, 0)
		})

		Convey("When OSHA answers with a wrapped list", func() {
			ds, err := source(t, collector.SourceOSHA, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(err, ShouldBeNil)
			sum := ds.Documents[0].Value.(collector.OSHASummary)
			So(len(sum.Inspections), ShouldEqual, 2)
			So(sum.TotalViolations, ShouldEqual, 2)
			So(sum.Inspections[0].ActivityNr, ShouldEqual, "1234567")
		})

		Convey("When EPA lists facilities", func() {
			ds, err := source(t, collector.SourceEPA, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(err, ShouldBeNil)
			sum := ds.Documents[0].Value.(collector.EPASummary)
			So(len(sum.Facilities), ShouldEqual, 2)
			So(sum.SignificantViolations, ShouldEqual, 1)
		})
	})
}

func TestTradeSources(t *testing.T) {
	u := newUpstream(t)
	ctx := context.Background()
	q := baseQuery()

	Convey("Given the trade and logistics sources", t, func() {
		Convey("When the LPI is collected", func() {
			ds, err := source(t, collector.SourceWorldBank, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(err, ShouldBeNil)
			obs := ds.Series[0].Observations
			So(len(obs), ShouldEqual, 2)
			So(obs[1].SeriesID, ShouldEqual, "CHN")
			So(obs[1].Date.Year(), ShouldEqual, 2023)
		})

		Convey("When the GSCPI workbook is collected", func() {
			ds, err := source(t, collector.SourceGSCPI, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(err, ShouldBeNil)
			obs := ds.Series[0].Observations
			So(len(obs), ShouldEqual, 2)
			So(obs[1].Value, ShouldEqual, -0.05)
			So(obs[1].Date.Format(model.DateLayout), ShouldEqual, "2024-12-31")
		})

		Convey("When Census imports are collected", func() {
			ds, err := source(t, collector.SourceCensus, collector.Settings{Endpoints: u.endpoints()}).Collect(ctx, q)
			So(err, ShouldBeNil)
			trade := ds.Documents[0].Value.(collector.CensusTrade)
			So(trade.Month, ShouldEqual, "2025-06")
			So(len(trade.Rows), ShouldEqual, 2)
			So(trade.Rows[0].Code, ShouldEqual, "84")
			So(u.queries["/data/timeseries/intltrade/imports/hs"], ShouldContainSubstring, "time=2025-06")
		})

		Convey("When the workbook has no table", func() {
			f := excelize.NewFile()
			buf, err := f.WriteToBuffer()
			So(err, ShouldBeNil)
			_, err = collector.ParseGSCPIWorkbook(buf.Bytes())
			So(errors.Is(err, collector.ErrSourceUnavailable), ShouldBeTrue)
		})
	})
}

func TestSnapshotSources(t *testing.T) {
	u := newUpstream(t)
	ctx := context.Background()

	Convey("Given curated snapshots", t, func() {
		snaps := collector.Snapshots{
			News:    &model.NewsSnapshot{SentimentScore: -0.6, Events: []model.NewsEvent{{Title: "Deal terminated", Score: -0.9}}},
			Reviews: &model.ReviewSnapshot{Platforms: []model.ReviewPlatform{{Name: "Glassdoor", Rating: 3.4, Reviews: 900}}},
		}

		Convey("When news and reviews are collected", func() {
			news, err := source(t, collector.SourceNews, collector.Settings{Snapshots: snaps}).Collect(ctx, baseQuery())
			So(err, ShouldBeNil)
			So(news.Documents[0].Name, ShouldEqual, collector.FileNews)
			So(news.Records(), ShouldEqual, 1)

			reviews, err := source(t, collector.SourceReviews, collector.Settings{Snapshots: snaps}).Collect(ctx, baseQuery())
			So(err, ShouldBeNil)
			So(reviews.Files(), ShouldResemble, []string{collector.FileReviews})
		})

		Convey("When a snapshot is absent", func() {
			_, err := source(t, collector.SourceReviews, collector.Settings{}).Collect(ctx, baseQuery())
			So(errors.Is(err, collector.ErrNotApplicable), ShouldBeTrue)
		})

		Convey("When shipments have a URL", func() {
			ds, err := source(t, collector.SourceShipments, collector.Settings{ShipmentsURL: u.srv.URL + "/shipments.json"}).Collect(ctx, baseQuery())
			So(err, ShouldBeNil)
			p := ds.Documents[0].Value.(*model.ShipmentProfile)
			So(p.TotalShipments, ShouldEqual, 120)
			So(ds.Records(), ShouldEqual, 3)
		})

		Convey("When shipments have no URL", func() {
			_, err := source(t, collector.SourceShipments, collector.Settings{}).Collect(ctx, baseQuery())
			So(errors.Is(err, collector.ErrMissingKey), ShouldBeTrue)
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a paced client", t, func() {
		var hits []time.Time
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, time.Now())
			switch r.URL.Path {
			case "/bad":
				_, _ = io.WriteString(w, "{not json")
			case "/down":
				w.WriteHeader(http.StatusServiceUnavailable)
			default:
				_ = json.NewEncoder(w).Encode(map[string]int{"n": 1})
			}
		}))
		defer srv.Close()
		c := collector.NewClient(collector.WithRequestDelay(50*time.Millisecond), collector.WithTimeout(time.Second))
		ctx := context.Background()

		Convey("When two calls are made", func() {
			var v map[string]int
			So(c.GetJSON(ctx, srv.URL+"/ok", nil, &v), ShouldBeNil)
			So(c.GetJSON(ctx, srv.URL+"/ok", nil, &v), ShouldBeNil)

			Convey("Then they are spaced by the delay", func() {
				So(len(hits), ShouldEqual, 2)
				So(hits[1].Sub(hits[0]), ShouldBeGreaterThanOrEqualTo, 40*time.Millisecond)
				So(v["n"], ShouldEqual, 1)
			})
		})

		Convey("When the payload is malformed or the status is an error", func() {
			var v map[string]int
			So(errors.Is(c.GetJSON(ctx, srv.URL+"/bad", nil, &v), collector.ErrSourceUnavailable), ShouldBeTrue)
			_, err := c.Get(ctx, srv.URL+"/down", nil)
			So(errors.Is(err, collector.ErrSourceUnavailable), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "503")
		})
	})
}
