package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/okian/riskdiag/internal/domain/dedupe"
	"github.com/okian/riskdiag/internal/domain/model"
)

const (
	maxFilings        = 40
	annualFactsKept   = 5
	quarterlyFactKept = 8
	minAnnualDays     = 300
)

// Concepts pulled from the us-gaap taxonomy.
var xbrlConcepts = []string{
	"Revenues",
	"RevenueFromContractWithCustomerExcludingAssessedTax",
	"NetIncomeLoss",
	"GrossProfit",
	"OperatingIncomeLoss",
	"Assets",
	"Liabilities",
	"StockholdersEquity",
	"CashAndCashEquivalentsAtCarryingValue",
	"InventoryNet",
	"LongTermDebt",
	"ResearchAndDevelopmentExpense",
	"EarningsPerShareBasic",
	"EarningsPerShareDiluted",
}

var filingForms = map[string]bool{"10-K": true, "10-Q": true, "8-K": true, "DEF 14A": true}

// SECFilings is the company profile and its recent periodic filings.
type SECFilings struct {
	Name           string   `json:"name"`
	CIK            string   `json:"cik"`
	SIC            string   `json:"sic"`
	SICDescription string   `json:"sic_description"`
	Tickers        []string `json:"tickers"`
	Exchanges      []string `json:"exchanges"`
	FiscalYearEnd  string   `json:"fiscal_year_end"`
	Filings        []Filing `json:"filings"`
}

// Filing is one entry of the recent filings index.
type Filing struct {
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
	AccessionNumber string `json:"accession_number"`
	Description     string `json:"description,omitempty"`
}

// SECXBRL holds the selected XBRL facts per concept.
type SECXBRL struct {
	CIK      string                   `json:"cik"`
	Concepts map[string]ConceptSeries `json:"concepts"`
}

// ConceptSeries is one concept in one unit. Annual holds one 10-K value per
// period year and Quarterly the latest 10-Q values, both newest first.
type ConceptSeries struct {
	Unit      string      `json:"unit"`
	Annual    []FactValue `json:"annual"`
	Quarterly []FactValue `json:"quarterly"`
}

// FactValue is one reported value.
type FactValue struct {
	Start string  `json:"start,omitempty"`
	End   string  `json:"end"`
	Value float64 `json:"value"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
}

type submissionsResponse struct {
	Name           string   `json:"name"`
	SIC            string   `json:"sic"`
	SICDescription string   `json:"sicDescription"`
	Tickers        []string `json:"tickers"`
	Exchanges      []string `json:"exchanges"`
	FiscalYearEnd  string   `json:"fiscalYearEnd"`
	Filings        struct {
		Recent struct {
			Form                  []string `json:"form"`
			FilingDate            []string `json:"filingDate"`
			AccessionNumber       []string `json:"accessionNumber"`
			PrimaryDocDescription []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

type companyFactsResponse struct {
	Facts map[string]map[string]struct {
		Units map[string][]map[string]any `json:"units"`
	} `json:"facts"`
}

type secSource struct {
	c    *Client
	base string
}

func (s *secSource) Name() string { return SourceSEC }

func (s *secSource) Outputs(Query) []string { return []string{FileSECFilings, FileSECXBRL} }

func (s *secSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	if q.CIK == "" {
		return Dataset{}, fmt.Errorf("%w: no CIK", ErrNotApplicable)
	}
	cik := q.CIK10()

	var sub submissionsResponse
	if err := s.c.GetJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", s.base, cik), nil, &sub); err != nil {
		return Dataset{}, err
	}
	filings := recentFilings(sub)

	var ds Dataset
	ds.Documents = append(ds.Documents, Document{
		Name: FileSECFilings,
		Value: SECFilings{
			Name:           sub.Name,
			CIK:            cik,
			SIC:            sub.SIC,
			SICDescription: sub.SICDescription,
			Tickers:        sub.Tickers,
			Exchanges:      sub.Exchanges,
			FiscalYearEnd:  sub.FiscalYearEnd,
			Filings:        filings,
		},
		Records: len(filings),
	})

	var facts companyFactsResponse
	if err := s.c.GetJSON(ctx, fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", s.base, cik), nil, &facts); err != nil {
		ds.Notes = append(ds.Notes, fmt.Sprintf("company facts: %v", err))
		return ds, nil
	}
	x := SECXBRL{CIK: cik, Concepts: map[string]ConceptSeries{}}
	gaap := facts.Facts["us-gaap"]
	for _, concept := range xbrlConcepts {
		c, ok := gaap[concept]
		if !ok {
			continue
		}
		unit, entries := pickUnit(c.Units)
		if unit == "" {
			continue
		}
		x.Concepts[concept] = conceptSeries(unit, entries)
	}
	ds.Documents = append(ds.Documents, Document{Name: FileSECXBRL, Value: x, Records: len(x.Concepts)})
	return ds, nil
}

func recentFilings(sub submissionsResponse) []Filing {
	r := sub.Filings.Recent
	out := make([]Filing, 0, maxFilings)
	for i, form := range r.Form {
		if !filingForms[form] || len(out) == maxFilings {
			continue
		}
		out = append(out, Filing{
			Form:            form,
			FilingDate:      index(r.FilingDate, i),
			AccessionNumber: index(r.AccessionNumber, i),
			Description:     index(r.PrimaryDocDescription, i),
		})
	}
	return out
}

// pickUnit prefers USD, then USD/shares, then the alphabetically first unit.
func pickUnit(units map[string][]map[string]any) (string, []map[string]any) {
	for _, u := range []string{"USD", "USD/shares"} {
		if e, ok := units[u]; ok {
			return u, e
		}
	}
	names := make([]string, 0, len(units))
	for u := range units {
		names = append(names, u)
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return names[0], units[names[0]]
}

func conceptSeries(unit string, entries []map[string]any) ConceptSeries {
	var annual, quarterly []FactValue
	for _, e := range entries {
		v := FactValue{
			Start: cast.ToString(e["start"]),
			End:   cast.ToString(e["end"]),
			Value: cast.ToFloat64(e["val"]),
			FY:    cast.ToInt(e["fy"]),
			FP:    cast.ToString(e["fp"]),
			Form:  cast.ToString(e["form"]),
			Filed: cast.ToString(e["filed"]),
		}
		if len(v.End) < 4 {
			continue
		}
		switch v.Form {
		case "10-K":
			// 10-Ks also report the fourth quarter on its own
			if fullYear(v) {
				annual = append(annual, v)
			}
		case "10-Q":
			quarterly = append(quarterly, v)
		}
	}
	return ConceptSeries{
		Unit:      unit,
		Annual:    latest(annual, func(f FactValue) string { return f.End[:4] }, annualFactsKept),
		Quarterly: latest(quarterly, func(f FactValue) string { return f.End }, quarterlyFactKept),
	}
}

// fullYear reports whether a duration fact spans a fiscal year. Instant
// facts (balances) have no start and always qualify.
func fullYear(v FactValue) bool {
	if v.Start == "" {
		return true
	}
	start, err := time.Parse(model.DateLayout, v.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(model.DateLayout, v.End)
	if err != nil {
		return false
	}
	return end.Sub(start) >= minAnnualDays*24*time.Hour
}

// latest sorts newest first (later filings win ties), keeps the first value per key and caps at n.
func latest(vals []FactValue, key func(FactValue) string, n int) []FactValue {
	sort.SliceStable(vals, func(i, j int) bool {
		if vals[i].End != vals[j].End {
			return vals[i].End > vals[j].End
		}
		return vals[i].Filed > vals[j].Filed
	})
	vals = dedupe.UniqueBy(vals, key)
	if len(vals) > n {
		vals = vals[:n]
	}
	return vals
}

func index(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return ""
}
