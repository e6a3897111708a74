package collector

// Source names.
const (
	SourceStock     = "stock"
	SourceFRED      = "fred"
	SourceSEC       = "sec"
	SourcePatents   = "patents"
	SourceSAM       = "sam"
	SourceOSHA      = "osha"
	SourceEPA       = "epa"
	SourceWorldBank = "worldbank"
	SourceGSCPI     = "gscpi"
	SourceCensus    = "census"
	SourceShipments = "shipments"
	SourceReviews   = "reviews"
	SourceNews      = "news"
)

// Output file names read back by the scorer and the renderer.
const (
	FileStockPrices = "stock_prices.csv"
	FileStockMeta   = "stock_meta.json"
	FileSECFilings  = "sec_filings.json"
	FileSECXBRL     = "sec_xbrl.json"
	FilePatents     = "patents.json"
	FileSAM         = "sam.json"
	FileOSHA        = "osha.json"
	FileEPA         = "epa.json"
	FileWorldBank   = "worldbank_lpi.csv"
	FileGSCPI       = "gscpi.csv"
	FileCensus      = "census_trade.json"
	FileShipments   = "shipments.json"
	FileReviews     = "reviews.json"
	FileNews        = "news_sentiment.json"
	FileReport      = "collection_report.json"
)

// FREDFile returns the file name of one FRED series.
func FREDFile(series string) string { return "fred_" + series + ".csv" }
