package collector

import (
	"fmt"

	"github.com/okian/riskdiag/internal/domain/model"
)

// Endpoints holds the base URL of every upstream. Tests point them at httptest servers.
type Endpoints struct {
	Yahoo     string
	FREDAPI   string
	FREDGraph string
	SEC       string
	Patents   string
	SAM       string
	DOL       string
	EPA       string
	WorldBank string
	GSCPI     string // full workbook URL
	Census    string
}

// DefaultEndpoints returns the public upstreams.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Yahoo:     "https://query1.finance.yahoo.com",
		FREDAPI:   "https://api.stlouisfed.org",
		FREDGraph: "https://fred.stlouisfed.org",
		SEC:       "https://data.sec.gov",
		Patents:   "https://search.patentsview.org",
		SAM:       "https://api.sam.gov",
		DOL:       "https://enforcedata.dol.gov",
		EPA:       "https://echodata.epa.gov",
		WorldBank: "https://api.worldbank.org",
		GSCPI:     "https://www.newyorkfed.org/medialibrary/research/interactives/gscpi/downloads/gscpi_data.xlsx",
		Census:    "https://api.census.gov",
	}
}

// Keys are the optional API keys. An empty key switches its source to the fallback path.
type Keys struct {
	FRED    string
	SAM     string
	Patents string
	Census  string
}

// Snapshots are curated datasets used where no live source exists or as fallbacks.
type Snapshots struct {
	News      *model.NewsSnapshot
	Reviews   *model.ReviewSnapshot
	Shipments *model.ShipmentProfile
}

// Settings configures Build.
type Settings struct {
	Endpoints    Endpoints
	Keys         Keys
	ShipmentsURL string
	Snapshots    Snapshots
}

// Build returns the named sources in order.
func Build(names []string, c *Client, s Settings) ([]Source, error) {
	ep := s.Endpoints
	out := make([]Source, 0, len(names))
	for _, name := range names {
		var src Source
		switch name {
		case SourceStock:
			src = &stockSource{c: c, base: ep.Yahoo}
		case SourceFRED:
			src = &fredSource{c: c, apiBase: ep.FREDAPI, graphBase: ep.FREDGraph, key: s.Keys.FRED}
		case SourceSEC:
			src = &secSource{c: c, base: ep.SEC}
		case SourcePatents:
			src = &patentsSource{c: c, base: ep.Patents, key: s.Keys.Patents}
		case SourceSAM:
			src = &samSource{c: c, base: ep.SAM, key: s.Keys.SAM}
		case SourceOSHA:
			src = &oshaSource{c: c, base: ep.DOL}
		case SourceEPA:
			src = &epaSource{c: c, base: ep.EPA}
		case SourceWorldBank:
			src = &worldBankSource{c: c, base: ep.WorldBank}
		case SourceGSCPI:
			src = &gscpiSource{c: c, url: ep.GSCPI}
		case SourceCensus:
			src = &censusSource{c: c, base: ep.Census, key: s.Keys.Census}
		case SourceShipments:
			src = &shipmentsSource{c: c, url: s.ShipmentsURL}
		case SourceReviews:
			src = newSnapshotSource(SourceReviews, FileReviews, s.Snapshots.Reviews, reviewRecords)
		case SourceNews:
			src = newSnapshotSource(SourceNews, FileNews, s.Snapshots.News, newsRecords)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
		}
		out = append(out, src)
	}
	return out, nil
}

// Fallbacks returns the curated datasets substituted when a live source fails.
func Fallbacks(s Snapshots) map[string]Dataset {
	out := map[string]Dataset{}
	if s.Shipments != nil {
		out[SourceShipments] = Dataset{Documents: []Document{{Name: FileShipments, Value: s.Shipments, Records: shipmentRecords(s.Shipments)}}}
	}
	return out
}
