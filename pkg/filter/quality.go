package filter

import (
	"math"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// Quality score component caps, on a 0-100 scale.
const (
	downloadPointsMax    = 30.0
	descriptionPointsMax = 20.0
	capabilityPointsMax  = 15.0
	validationPointsMax  = 20.0
	recencyPointsMax     = 10.0

	// descriptionFullLength is the description length earning full points.
	descriptionFullLength = 200

	// pointsPerCapability is granted per declared capability, up to the cap.
	pointsPerCapability = 3.0

	// recencyWindow is how far back an update still earns recency points,
	// decaying linearly to zero at the window edge.
	recencyWindow = 180 * 24 * time.Hour
)

// QualityScore rates a record on a 0-100 scale from five signals: download
// volume (log-scaled), description length, declared capabilities,
// validation outcome, and update recency.
func QualityScore(r *catalog.ModelRecord) float64 {
	return qualityScoreAt(r, utc.Now())
}

func qualityScoreAt(r *catalog.ModelRecord, now utc.Time) float64 {
	score := math.Min(math.Log10(float64(r.Downloads)+1)*5, downloadPointsMax)
	score += math.Min(float64(len(r.Description))/descriptionFullLength*descriptionPointsMax, descriptionPointsMax)
	score += math.Min(float64(len(r.Capabilities))*pointsPerCapability, capabilityPointsMax)

	switch r.Validation.Status {
	case catalog.ValidationPassed:
		score += validationPointsMax
	case catalog.ValidationPartial:
		score += validationPointsMax / 2
	}

	score += recencyPoints(r, now)
	return score
}

// recencyPoints decays linearly from the cap at age zero to nothing at the
// window edge. Records with no usable timestamp earn nothing.
func recencyPoints(r *catalog.ModelRecord, now utc.Time) float64 {
	ref := recencyReference(r)
	if ref.IsZero() {
		return 0
	}

	age := now.Sub(ref)
	if age < 0 {
		age = 0
	}
	if age >= recencyWindow {
		return 0
	}
	return recencyPointsMax * (1 - float64(age)/float64(recencyWindow))
}

// recencyReference picks the timestamp recency is judged by: the source's
// own modification time when reported, otherwise the collection time.
func recencyReference(r *catalog.ModelRecord) utc.Time {
	if !r.LastModified.IsZero() {
		return r.LastModified
	}
	return r.Provenance.CollectedAt
}

// Grade buckets a quality score for distribution reporting.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	case score >= 20:
		return "poor"
	default:
		return "minimal"
	}
}

// QualityDistribution counts records per quality grade.
func QualityDistribution(models []catalog.ModelRecord) map[string]int {
	if len(models) == 0 {
		return nil
	}
	now := utc.Now()
	dist := make(map[string]int)
	for i := range models {
		dist[Grade(qualityScoreAt(&models[i], now))]++
	}
	return dist
}
