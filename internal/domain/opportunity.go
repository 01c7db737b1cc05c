package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Opportunity is one tracked deal. The uid is assigned at creation and
// never reassigned; every other business field may change across
// re-imports and edits.
type Opportunity struct {
	UID             uuid.UUID `json:"uid"`
	ProjectName     string    `json:"project_name"`
	ProjectCode     string    `json:"project_code"`
	Rev             *int      `json:"rev"`
	Client          string    `json:"client"`
	Solutions       string    `json:"solutions"`
	Industries      string    `json:"industries"`
	DateReceived    string    `json:"date_received"`
	ClientDeadline  string    `json:"client_deadline"`
	Decision        string    `json:"decision"`
	AccountMgr      string    `json:"account_mgr"`
	PIC             string    `json:"pic"`
	BOM             string    `json:"bom"`
	Status          string    `json:"status"`
	SubmittedDate   string    `json:"submitted_date"`
	Margin          *float64  `json:"margin"`
	FinalAmt        *float64  `json:"final_amt"`
	OppStatus       string    `json:"opp_status"`
	DateAwardedLost string    `json:"date_awarded_lost"`
	LostRCA         string    `json:"lost_rca"`
	Remarks         string    `json:"remarks"`
	ForecastDate    string    `json:"forecast_date"`
	LastModifiedBy  string    `json:"last_modified_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Candidate carries the mutable field set of an incoming record, before
// identity resolution. It is what the importer and the HTTP layer hand to
// the merge engine.
type Candidate struct {
	ProjectName     string   `json:"project_name"`
	ProjectCode     string   `json:"project_code"`
	Rev             *int     `json:"rev"`
	Client          string   `json:"client"`
	Solutions       string   `json:"solutions"`
	Industries      string   `json:"industries"`
	DateReceived    string   `json:"date_received"`
	ClientDeadline  string   `json:"client_deadline"`
	Decision        string   `json:"decision"`
	AccountMgr      string   `json:"account_mgr"`
	PIC             string   `json:"pic"`
	BOM             string   `json:"bom"`
	Status          string   `json:"status"`
	SubmittedDate   string   `json:"submitted_date"`
	Margin          *float64 `json:"margin"`
	FinalAmt        *float64 `json:"final_amt"`
	OppStatus       string   `json:"opp_status"`
	DateAwardedLost string   `json:"date_awarded_lost"`
	LostRCA         string   `json:"lost_rca"`
	Remarks         string   `json:"remarks"`
	ForecastDate    string   `json:"forecast_date"`
}

// MutableFields is the fixed, ordered schema of diffable business fields.
// System fields (uid, created_at, updated_at, last_modified_by) are not in
// this list and never appear in a change set.
var MutableFields = []string{
	"project_name",
	"project_code",
	"rev",
	"client",
	"solutions",
	"industries",
	"date_received",
	"client_deadline",
	"decision",
	"account_mgr",
	"pic",
	"bom",
	"status",
	"submitted_date",
	"margin",
	"final_amt",
	"opp_status",
	"date_awarded_lost",
	"lost_rca",
	"remarks",
	"forecast_date",
}

// NewOpportunity creates an opportunity from a candidate, assigning a fresh
// uid. The caller decides the uid exactly once; it is never regenerated.
func NewOpportunity(c Candidate, createdBy string) Opportunity {
	now := time.Now()
	o := Opportunity{
		UID:            uuid.New(),
		LastModifiedBy: createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.ApplyCandidate(c)
	return o
}

// ApplyCandidate overwrites the mutable field set from the candidate.
// System fields are untouched.
func (o *Opportunity) ApplyCandidate(c Candidate) {
	o.ProjectName = strings.TrimSpace(c.ProjectName)
	o.ProjectCode = strings.TrimSpace(c.ProjectCode)
	o.Rev = c.Rev
	o.Client = strings.TrimSpace(c.Client)
	o.Solutions = strings.TrimSpace(c.Solutions)
	o.Industries = strings.TrimSpace(c.Industries)
	o.DateReceived = strings.TrimSpace(c.DateReceived)
	o.ClientDeadline = strings.TrimSpace(c.ClientDeadline)
	o.Decision = strings.TrimSpace(c.Decision)
	o.AccountMgr = strings.TrimSpace(c.AccountMgr)
	o.PIC = strings.TrimSpace(c.PIC)
	o.BOM = strings.TrimSpace(c.BOM)
	o.Status = strings.TrimSpace(c.Status)
	o.SubmittedDate = strings.TrimSpace(c.SubmittedDate)
	o.Margin = c.Margin
	o.FinalAmt = c.FinalAmt
	o.OppStatus = strings.TrimSpace(c.OppStatus)
	o.DateAwardedLost = strings.TrimSpace(c.DateAwardedLost)
	o.LostRCA = strings.TrimSpace(c.LostRCA)
	o.Remarks = strings.TrimSpace(c.Remarks)
	o.ForecastDate = strings.TrimSpace(c.ForecastDate)
}

// AsCandidate projects the stored record back onto the mutable field set,
// which is the shape the diff operates on.
func (o Opportunity) AsCandidate() Candidate {
	return Candidate{
		ProjectName:     o.ProjectName,
		ProjectCode:     o.ProjectCode,
		Rev:             o.Rev,
		Client:          o.Client,
		Solutions:       o.Solutions,
		Industries:      o.Industries,
		DateReceived:    o.DateReceived,
		ClientDeadline:  o.ClientDeadline,
		Decision:        o.Decision,
		AccountMgr:      o.AccountMgr,
		PIC:             o.PIC,
		BOM:             o.BOM,
		Status:          o.Status,
		SubmittedDate:   o.SubmittedDate,
		Margin:          o.Margin,
		FinalAmt:        o.FinalAmt,
		OppStatus:       o.OppStatus,
		DateAwardedLost: o.DateAwardedLost,
		LostRCA:         o.LostRCA,
		Remarks:         o.Remarks,
		ForecastDate:    o.ForecastDate,
	}
}

// Amount returns the financial amount used for aggregation, zero when the
// record has none.
func (o Opportunity) Amount() float64 {
	if o.FinalAmt == nil {
		return 0
	}
	return *o.FinalAmt
}

// Validate enforces the single essential field: a record without a project
// name cannot be identified and is rejected row-locally.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.ProjectName) == "" {
		return &ValidationError{Field: "project_name", Message: "project name is required"}
	}
	return nil
}

// value returns the raw and normalized value of one mutable field. The
// normalized form is what the diff compares: trimmed text with empty and
// null equivalent, numbers in canonical decimal form.
func (c Candidate) value(field string) (raw any, normalized string) {
	switch field {
	case "project_name":
		return c.ProjectName, normalizeText(c.ProjectName)
	case "project_code":
		return c.ProjectCode, normalizeText(c.ProjectCode)
	case "rev":
		return intValue(c.Rev)
	case "client":
		return c.Client, normalizeText(c.Client)
	case "solutions":
		return c.Solutions, normalizeText(c.Solutions)
	case "industries":
		return c.Industries, normalizeText(c.Industries)
	case "date_received":
		return c.DateReceived, normalizeText(c.DateReceived)
	case "client_deadline":
		return c.ClientDeadline, normalizeText(c.ClientDeadline)
	case "decision":
		return c.Decision, normalizeText(c.Decision)
	case "account_mgr":
		return c.AccountMgr, normalizeText(c.AccountMgr)
	case "pic":
		return c.PIC, normalizeText(c.PIC)
	case "bom":
		return c.BOM, normalizeText(c.BOM)
	case "status":
		return c.Status, normalizeText(c.Status)
	case "submitted_date":
		return c.SubmittedDate, normalizeText(c.SubmittedDate)
	case "margin":
		return floatValue(c.Margin)
	case "final_amt":
		return floatValue(c.FinalAmt)
	case "opp_status":
		return c.OppStatus, normalizeText(c.OppStatus)
	case "date_awarded_lost":
		return c.DateAwardedLost, normalizeText(c.DateAwardedLost)
	case "lost_rca":
		return c.LostRCA, normalizeText(c.LostRCA)
	case "remarks":
		return c.Remarks, normalizeText(c.Remarks)
	case "forecast_date":
		return c.ForecastDate, normalizeText(c.ForecastDate)
	}
	return nil, ""
}

func normalizeText(s string) string {
	return strings.TrimSpace(s)
}

func intValue(v *int) (any, string) {
	if v == nil {
		return nil, ""
	}
	return *v, strconv.Itoa(*v)
}

func floatValue(v *float64) (any, string) {
	if v == nil {
		return nil, ""
	}
	return *v, strconv.FormatFloat(*v, 'f', -1, 64)
}
