package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// DateLayout is the canonical date-only format used for disclosure dates, periods and buckets.
const DateLayout = "2006-01-02"

// Field accepts upstream values that arrive as JSON strings, numbers or null.
type Field string

// UnmarshalJSON keeps the textual form of strings and numbers; null becomes empty.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	*f = Field(data)
	return nil
}

// String returns the raw textual value.
func (f Field) String() string {
	return string(f)
}

// Float parses the field; ok is false for empty or non-numeric values.
func (f Field) Float() (float64, bool) {
	if f == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RawRecord is one row of the upstream earnings-forecast feed. Nothing in it is trusted.
type RawRecord struct {
	SecurityCode      Field `json:"SECURITY_CODE"`
	SecurityName      Field `json:"SECURITY_NAME_ABBR"`
	NoticeDate        Field `json:"NOTICE_DATE"`
	ReportDate        Field `json:"REPORT_DATE"`
	PredictType       Field `json:"PREDICT_TYPE"`
	ChangeLower       Field `json:"ADD_AMP_LOWER"`
	ChangeUpper       Field `json:"ADD_AMP_UPPER"`
	PredictContent    Field `json:"PREDICT_CONTENT"`
	ChangeReason      Field `json:"CHANGE_REASON_EXPLAIN"`
	PredictAmtUpper   Field `json:"PREDICT_AMT_UPPER"`
	PredictAmtLower   Field `json:"PREDICT_AMT_LOWER"`
	PreviousYearValue Field `json:"PREYEAR_SAME_PERIOD"`
	ChangeYoY         Field `json:"INCREASE_JZ"`
	ChangeQoQ         Field `json:"INCREASE_HB"`
}

// Report is a normalized earnings-forecast announcement.
type Report struct {
	Code           string    `json:"stockCode"`
	Name           string    `json:"stockName"`
	DisclosureDate time.Time `json:"reportDate"`
	Period         time.Time `json:"quarter"`
	ForecastType   string    `json:"forecastType"`
	ChangeMin      float64   `json:"changeMin"`
	ChangeMax      float64   `json:"changeMax"`
	Content        string    `json:"content"`
	PredictValue   *float64  `json:"predictValue,omitempty"`
	LastYearValue  *float64  `json:"lastYearValue,omitempty"`
	ChangeYoY      *float64  `json:"changeYoY,omitempty"`
	ChangeQoQ      *float64  `json:"changeQoQ,omitempty"`
	ChangeReason   string    `json:"changeReason,omitempty"`
}

// PeriodKey renders the fiscal period as YYYY-MM-DD.
func (r Report) PeriodKey() string {
	return r.Period.Format(DateLayout)
}

// DisclosureKey renders the disclosure date as YYYY-MM-DD.
func (r Report) DisclosureKey() string {
	return r.DisclosureDate.Format(DateLayout)
}

// ChangeRange renders the forecast change bounds, e.g. "50%~80%".
func (r Report) ChangeRange() string {
	return strconv.FormatFloat(r.ChangeMin, 'f', -1, 64) + "%~" + strconv.FormatFloat(r.ChangeMax, 'f', -1, 64) + "%"
}

// QuarterLabel maps the period end month to a quarter label such as "2025Q2".
func (r Report) QuarterLabel() string {
	if r.Period.IsZero() {
		return ""
	}
	q := 1
	switch r.Period.Month() {
	case time.June:
		q = 2
	case time.September:
		q = 3
	case time.December:
		q = 4
	}
	return strconv.Itoa(r.Period.Year()) + "Q" + strconv.Itoa(q)
}

// ScoredReport pairs a report with the optional enrichment commentary.
type ScoredReport struct {
	Report  Report `json:"report"`
	Comment string `json:"comment,omitempty"`
}
