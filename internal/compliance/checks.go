// Package compliance runs the fixed battery of application-safety rule
// checks over a finalized product plan and field context.
package compliance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cropsage/cropsage/internal/models"
)

// Thresholds are the policy constants for rate and dose checks. The values
// carry label-rate units and come from the regulatory review config.
type Thresholds struct {
	MaxSingleRate   float64
	MaxSeasonalDose float64
	RuleVersion     string
}

// DefaultThresholds returns the current policy defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxSingleRate: 10, MaxSeasonalDose: 25000, RuleVersion: "2024.1"}
}

// pastGrace is how far in the past a planned date may sit before the REI/PHI
// check treats the application as already made.
const pastGrace = 24 * time.Hour

// check is one stateless rule. now is passed in so evaluation stays pure.
type check func(in *models.ComplianceInput, th Thresholds, now time.Time) models.ComplianceCheckResult

// checks is the ordered rule battery. Order is stable for audit diffing.
var checks = []check{
	checkJurisdiction,
	checkCropStage,
	checkTiming,
	checkMaxSingleRate,
	checkSeasonalDose,
	checkEndangeredSpecies,
}

var leadingNumber = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)`)

// parseRate extracts the leading numeric token of an application-rate string.
func parseRate(rate string) (float64, bool) {
	m := leadingNumber.FindStringSubmatch(rate)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func checkJurisdiction(in *models.ComplianceInput, th Thresholds, _ time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "jurisdiction_context",
		Title:       "Jurisdiction context",
		Severity:    models.SeverityHard,
		RuleVersion: th.RuleVersion,
	}
	if strings.TrimSpace(in.Location) == "" {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = "No field location on record; jurisdiction rules cannot be resolved."
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "Field location present."
	r.Evidence = map[string]string{"location": in.Location}
	return r
}

func checkCropStage(in *models.ComplianceInput, th Thresholds, _ time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "crop_stage_context",
		Title:       "Crop and growth stage context",
		Severity:    models.SeverityHard,
		RuleVersion: th.RuleVersion,
	}
	missing := []string{}
	if strings.TrimSpace(in.Crop) == "" {
		missing = append(missing, "crop")
	}
	if strings.TrimSpace(in.GrowthStage) == "" {
		missing = append(missing, "growth stage")
	}
	if len(missing) > 0 {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = fmt.Sprintf("Missing %s; label crop/stage restrictions cannot be confirmed.", strings.Join(missing, " and "))
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "Crop and growth stage on record."
	r.Evidence = map[string]string{"crop": in.Crop, "growth_stage": in.GrowthStage}
	return r
}

func checkTiming(in *models.ComplianceInput, th Thresholds, now time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "rei_phi_timing",
		Title:       "REI/PHI application timing",
		Severity:    models.SeverityHard,
		RuleVersion: th.RuleVersion,
	}
	if in.PlannedDate == nil {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = "No planned application date; re-entry and pre-harvest intervals cannot be checked."
		return r
	}
	if now.Sub(*in.PlannedDate) > pastGrace {
		r.Result = models.OutcomePotentialConflict
		r.Message = "Planned application date is in the past; intervals may already be running."
		r.Evidence = map[string]string{"planned_date": in.PlannedDate.Format(time.RFC3339)}
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "Planned application date is current."
	r.Evidence = map[string]string{"planned_date": in.PlannedDate.Format(time.RFC3339)}
	return r
}

func checkMaxSingleRate(in *models.ComplianceInput, th Thresholds, _ time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "max_single_rate",
		Title:       "Maximum single application rate",
		Severity:    models.SeverityHard,
		RuleVersion: th.RuleVersion,
	}
	maxRate, parsedAny, unparseable := maxParsedRate(in.Products)
	if !parsedAny {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = "No parseable application rate on the product plan."
		return r
	}
	if unparseable > 0 {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = fmt.Sprintf("%d product rate(s) could not be parsed.", unparseable)
		r.Evidence = map[string]string{"max_parsed_rate": fmt.Sprintf("%g", maxRate)}
		return r
	}
	if maxRate > th.MaxSingleRate {
		r.Result = models.OutcomePotentialConflict
		r.Message = fmt.Sprintf("Highest planned rate %g exceeds the single-application limit %g.", maxRate, th.MaxSingleRate)
		r.Evidence = map[string]string{"max_parsed_rate": fmt.Sprintf("%g", maxRate)}
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "All planned rates within the single-application limit."
	r.Evidence = map[string]string{"max_parsed_rate": fmt.Sprintf("%g", maxRate)}
	return r
}

func checkSeasonalDose(in *models.ComplianceInput, th Thresholds, _ time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "seasonal_dose",
		Title:       "Estimated seasonal dose",
		Severity:    models.SeveritySoft,
		RuleVersion: th.RuleVersion,
	}
	_, parsedAny, _ := maxParsedRate(in.Products)
	if in.Acreage <= 0 || !parsedAny {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = "Acreage or parseable rates missing; seasonal dose cannot be estimated."
		return r
	}
	total := 0.0
	for _, p := range in.Products {
		if rate, ok := parseRate(p.ApplicationRate); ok {
			total += rate * in.Acreage
		}
	}
	if total > th.MaxSeasonalDose {
		r.Result = models.OutcomePotentialConflict
		r.Message = fmt.Sprintf("Estimated seasonal dose %g exceeds the limit %g.", total, th.MaxSeasonalDose)
		r.Evidence = map[string]string{"estimated_dose": fmt.Sprintf("%g", total)}
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "Estimated seasonal dose within the limit."
	r.Evidence = map[string]string{"estimated_dose": fmt.Sprintf("%g", total)}
	return r
}

func checkEndangeredSpecies(in *models.ComplianceInput, th Thresholds, _ time.Time) models.ComplianceCheckResult {
	r := models.ComplianceCheckResult{
		ID:          "endangered_species_bulletin",
		Title:       "Endangered species bulletin",
		Severity:    models.SeveritySoft,
		RuleVersion: th.RuleVersion,
	}
	if isUSJurisdiction(in.Location) {
		r.Result = models.OutcomeNeedsManualReview
		r.Message = "US jurisdiction: check Bulletins Live! Two for county-level restrictions."
		r.Evidence = map[string]string{"location": in.Location}
		return r
	}
	r.Result = models.OutcomeClearSignal
	r.Message = "No US endangered-species bulletin applies."
	return r
}

func maxParsedRate(products []models.ProductChoice) (maxRate float64, parsedAny bool, unparseable int) {
	for _, p := range products {
		rate, ok := parseRate(p.ApplicationRate)
		if !ok {
			unparseable++
			continue
		}
		parsedAny = true
		if rate > maxRate {
			maxRate = rate
		}
	}
	return maxRate, parsedAny, unparseable
}
