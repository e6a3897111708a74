package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

const patentsPageSize = 100

// PatentSummary is the assignee's patent portfolio.
type PatentSummary struct {
	Assignee string         `json:"assignee"`
	Total    int            `json:"total_patents"`
	ByYear   map[string]int `json:"yearly_counts"`
	Recent   []Patent       `json:"recent_patents"`
}

// Patent is one granted patent.
type Patent struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Type   string `json:"type,omitempty"`
}

type patentsSource struct {
	c    *Client
	base string
	key  string
}

func (s *patentsSource) Name() string { return SourcePatents }

func (s *patentsSource) Outputs(Query) []string { return []string{FilePatents} }

func (s *patentsSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	if s.key == "" {
		return Dataset{}, fmt.Errorf("%w: patents_api_key", ErrMissingKey)
	}
	assignee := q.ShortName()
	query, _ := json.Marshal(map[string]any{"_contains": map[string]string{"assignees.assignee_organization": assignee}})
	fields, _ := json.Marshal([]string{"patent_id", "patent_title", "patent_date", "patent_type"})
	opts, _ := json.Marshal(map[string]int{"size": patentsPageSize})
	sorting, _ := json.Marshal([]map[string]string{{"patent_date": "desc"}})
	params := url.Values{}
	params.Set("q", string(query))
	params.Set("f", string(fields))
	params.Set("o", string(opts))
	params.Set("s", string(sorting))

	var resp map[string]any
	if err := s.c.GetJSON(ctx, s.base+"/api/v1/patent/?"+params.Encode(), map[string]string{"X-Api-Key": s.key}, &resp); err != nil {
		return Dataset{}, err
	}
	rows := cast.ToSlice(resp["patents"])
	sum := PatentSummary{Assignee: assignee, ByYear: map[string]int{}}
	for _, r := range rows {
		m := cast.ToStringMap(r)
		p := Patent{
			Number: firstString(m, "patent_id", "patent_number"),
			Title:  cast.ToString(m["patent_title"]),
			Date:   cast.ToString(m["patent_date"]),
			Type:   cast.ToString(m["patent_type"]),
		}
		if len(p.Date) >= 4 {
			sum.ByYear[p.Date[:4]]++
		}
		sum.Recent = append(sum.Recent, p)
	}
	sum.Total = cast.ToInt(firstValue(resp, "total_hits", "total_patent_count"))
	if sum.Total < len(rows) {
		sum.Total = len(rows)
	}
	return Dataset{Documents: []Document{{Name: FilePatents, Value: sum, Records: len(rows)}}}, nil
}

// SAMRecord is the federal registration status of the company.
type SAMRecord struct {
	Query          string      `json:"query"`
	Entities       []SAMEntity `json:"entities"`
	ExclusionCount int         `json:"exclusion_count"`
	ExclusionsRead bool        `json:"exclusions_checked"`
}

// SAMEntity is one registered entity.
type SAMEntity struct {
	UEI            string `json:"uei"`
	LegalName      string `json:"legal_business_name"`
	CAGECode       string `json:"cage_code"`
	Status         string `json:"registration_status"`
	ExpirationDate string `json:"registration_expiration_date"`
}

type samEntitiesResponse struct {
	TotalRecords int `json:"totalRecords"`
	EntityData   []struct {
		EntityRegistration struct {
			UEISAM                     string `json:"ueiSAM"`
			LegalBusinessName          string `json:"legalBusinessName"`
			CageCode                   string `json:"cageCode"`
			RegistrationStatus         string `json:"registrationStatus"`
			RegistrationExpirationDate string `json:"registrationExpirationDate"`
		} `json:"entityRegistration"`
	} `json:"entityData"`
}

type samSource struct {
	c    *Client
	base string
	key  string
}

func (s *samSource) Name() string { return SourceSAM }

func (s *samSource) Outputs(Query) []string { return []string{FileSAM} }

func (s *samSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	if s.key == "" {
		return Dataset{}, fmt.Errorf("%w: sam_api_key", ErrMissingKey)
	}
	name := q.ShortName()
	params := url.Values{}
	params.Set("api_key", s.key)
	params.Set("legalBusinessName", name)
	params.Set("registrationStatus", "A")

	var resp samEntitiesResponse
	if err := s.c.GetJSON(ctx, s.base+"/entity-information/v3/entities?"+params.Encode(), nil, &resp); err != nil {
		return Dataset{}, err
	}
	rec := SAMRecord{Query: name}
	for _, e := range resp.EntityData {
		r := e.EntityRegistration
		rec.Entities = append(rec.Entities, SAMEntity{
			UEI:            r.UEISAM,
			LegalName:      r.LegalBusinessName,
			CAGECode:       r.CageCode,
			Status:         r.RegistrationStatus,
			ExpirationDate: r.RegistrationExpirationDate,
		})
	}

	var ds Dataset
	excl := url.Values{}
	excl.Set("api_key", s.key)
	excl.Set("q", name)
	var exclusions map[string]any
	if err := s.c.GetJSON(ctx, s.base+"/entity-information/v2/exclusions?"+excl.Encode(), nil, &exclusions); err != nil {
		ds.Notes = append(ds.Notes, fmt.Sprintf("exclusions: %v", err))
	} else {
		rec.ExclusionsRead = true
		rec.ExclusionCount = cast.ToInt(exclusions["totalRecords"])
	}
	ds.Documents = []Document{{Name: FileSAM, Value: rec, Records: len(rec.Entities)}}
	return ds, nil
}

// OSHASummary lists workplace safety inspections of the company's establishments.
type OSHASummary struct {
	Establishment   string           `json:"establishment"`
	Inspections     []OSHAInspection `json:"inspections"`
	TotalViolations int              `json:"total_violations"`
}

// OSHAInspection is one inspection record.
type OSHAInspection struct {
	ActivityNr    string `json:"activity_nr"`
	Establishment string `json:"estab_name"`
	OpenDate      string `json:"open_date"`
	State         string `json:"site_state"`
	Violations    int    `json:"total_violations"`
}

type oshaSource struct {
	c    *Client
	base string
}

func (s *oshaSource) Name() string { return SourceOSHA }

func (s *oshaSource) Outputs(Query) []string { return []string{FileOSHA} }

func (s *oshaSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	name := strings.ToLower(q.ShortName())
	params := url.Values{}
	params.Set("estab_name", name)
	params.Set("p_start", "0")
	params.Set("p_finish", "25")
	body, err := s.c.Get(ctx, s.base+"/api/enforcement/osha_inspection?"+params.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return Dataset{}, err
	}
	// the endpoint answers with either a bare list or {"results": [...]}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		var wrapped struct {
			Results []map[string]any `json:"results"`
		}
		if err := decodeJSON(body, &wrapped); err != nil {
			return Dataset{}, err
		}
		rows = wrapped.Results
	}
	sum := OSHASummary{Establishment: name, Inspections: []OSHAInspection{}}
	for _, r := range rows {
		in := OSHAInspection{
			ActivityNr:    cast.ToString(r["activity_nr"]),
			Establishment: cast.ToString(r["estab_name"]),
			OpenDate:      cast.ToString(r["open_date"]),
			State:         cast.ToString(r["site_state"]),
			Violations:    cast.ToInt(r["total_violations"]),
		}
		sum.TotalViolations += in.Violations
		sum.Inspections = append(sum.Inspections, in)
	}
	return Dataset{Documents: []Document{{Name: FileOSHA, Value: sum, Records: len(sum.Inspections)}}}, nil
}

// EPASummary lists environmental compliance records of the company's facilities.
type EPASummary struct {
	Query                 string        `json:"query"`
	Facilities            []EPAFacility `json:"facilities"`
	SignificantViolations int           `json:"significant_violations"`
}

// EPAFacility is one regulated facility.
type EPAFacility struct {
	Name                 string `json:"name"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	State                string `json:"state"`
	SignificantViolation bool   `json:"significant_violation"`
}

type epaResponse struct {
	Results struct {
		Message    string           `json:"Message"`
		Facilities []map[string]any `json:"Facilities"`
	} `json:"Results"`
}

type epaSource struct {
	c    *Client
	base string
}

func (s *epaSource) Name() string { return SourceEPA }

func (s *epaSource) Outputs(Query) []string { return []string{FileEPA} }

func (s *epaSource) Collect(ctx context.Context, q Query) (Dataset, error) {
	name := q.ShortName()
	params := url.Values{}
	params.Set("p_fn", name)
	params.Set("output", "JSON")
	var resp epaResponse
	if err := s.c.GetJSON(ctx, s.base+"/echo/dfr_rest_services.get_facility_info?"+params.Encode(), nil, &resp); err != nil {
		return Dataset{}, err
	}
	sum := EPASummary{Query: name, Facilities: []EPAFacility{}}
	for _, f := range resp.Results.Facilities {
		fac := EPAFacility{
			Name:                 cast.ToString(f["FacName"]),
			Address:              cast.ToString(f["FacAddr"]),
			City:                 cast.ToString(f["FacCity"]),
			State:                cast.ToString(f["FacState"]),
			SignificantViolation: strings.EqualFold(cast.ToString(f["CurrSvFlag"]), "Y"),
		}
		if fac.SignificantViolation {
			sum.SignificantViolations++
		}
		sum.Facilities = append(sum.Facilities, fac)
	}
	sort.SliceStable(sum.Facilities, func(i, j int) bool { return sum.Facilities[i].Name < sum.Facilities[j].Name })
	return Dataset{Documents: []Document{{Name: FileEPA, Value: sum, Records: len(sum.Facilities)}}}, nil
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	return cast.ToString(firstValue(m, keys...))
}
