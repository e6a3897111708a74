package model

// NewsSnapshot is a scored set of news events about the company.
type NewsSnapshot struct {
	SentimentScore float64     `json:"sentiment_score" yaml:"sentiment_score" validate:"gte=-1,lte=1"`
	MediaCoverage  string      `json:"media_coverage" yaml:"media_coverage" validate:"omitempty,oneof=high medium low"`
	Events         []NewsEvent `json:"events" yaml:"events" validate:"dive"`
}

// NewsEvent is one dated headline with a sentiment in [-1,1].
type NewsEvent struct {
	Date      string  `json:"date" yaml:"date" validate:"omitempty,datetime=2006-01-02"`
	Title     string  `json:"title" yaml:"title" validate:"required"`
	Score     float64 `json:"score" yaml:"score" validate:"gte=-1,lte=1"`
	RiskLevel string  `json:"risk_level,omitempty" yaml:"risk_level" validate:"omitempty,oneof=extreme high medium low"`
}

// ReviewSnapshot aggregates employer review ratings across platforms.
type ReviewSnapshot struct {
	Platforms []ReviewPlatform `json:"platforms" yaml:"platforms" validate:"dive"`
}

// ReviewPlatform is the rating on one review site, on a 1-5 scale.
type ReviewPlatform struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Rating       float64  `json:"rating" yaml:"rating" validate:"gte=1,lte=5"`
	Reviews      int      `json:"reviews" yaml:"reviews" validate:"gte=0"`
	RecommendPct *float64 `json:"recommend_pct,omitempty" yaml:"recommend_pct" validate:"omitempty,gte=0,lte=100"`
}

// ShipmentProfile summarises customs bills of lading for an importer.
type ShipmentProfile struct {
	TotalShipments     int          `json:"total_shipments" yaml:"total_shipments" validate:"gte=0"`
	MostRecentShipment string       `json:"most_recent_shipment,omitempty" yaml:"most_recent_shipment"`
	Yearly             []YearCount  `json:"yearly" yaml:"yearly" validate:"dive"`
	Monthly            []MonthCount `json:"monthly,omitempty" yaml:"monthly" validate:"dive"`
	Suppliers          []Supplier   `json:"suppliers" yaml:"suppliers" validate:"dive"`
}

// YearCount is the shipment count for one year. Months < 12 marks a partial year.
type YearCount struct {
	Year   int `json:"year" yaml:"year" validate:"gt=1900"`
	Count  int `json:"count" yaml:"count" validate:"gte=0"`
	Months int `json:"months,omitempty" yaml:"months" validate:"gte=0,lte=12"`
}

// MonthCount is the shipment count for one month, "YYYY-MM".
type MonthCount struct {
	Month string `json:"month" yaml:"month" validate:"required,datetime=2006-01"`
	Count int    `json:"count" yaml:"count" validate:"gte=0"`
}

// Supplier is one foreign shipper with its share of shipments in percent.
type Supplier struct {
	Name     string  `json:"name" yaml:"name" validate:"required"`
	Country  string  `json:"country" yaml:"country"`
	SharePct float64 `json:"share_pct" yaml:"share_pct" validate:"gte=0,lte=100"`
}
