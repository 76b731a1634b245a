package models

// Requests for the HTTP endpoints. Binding tags are read by pkg/http.ReadAndValidateRequest.

type HistoryRequest struct {
	From  string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" json:"limit" default:"30" validate:"gte=1,lte=1000"`
}

type ReportRequest struct {
	Format string `query:"format" json:"format" default:"md" validate:"oneof=md html"`
}

type RunRequest struct {
	// Sync refreshes prices before analyzing.
	Sync bool `query:"sync" json:"sync"`
}
