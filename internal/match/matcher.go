package match

import (
	"math"

	"github.com/your-org/kiosk/internal/roster"
)

// Result is the outcome of matching one probe embedding against the roster.
type Result struct {
	IdentityID int64
	Name       string
	Distance   float64
	Known      bool
	// Ambiguous is set when more than one identity was within TieEpsilon of
	// the minimum distance. The tie is resolved toward the lowest identity
	// ID; callers log it as a low-confidence match.
	Ambiguous bool
}

// Matcher selects the closest roster identity for a probe embedding using
// Euclidean distance. The acceptance boundary is exclusive: a distance equal
// to Threshold is classified unknown.
type Matcher struct {
	Threshold  float64
	TieEpsilon float64
}

func New(threshold, tieEpsilon float64) Matcher {
	return Matcher{Threshold: threshold, TieEpsilon: tieEpsilon}
}

// Match scans the snapshot in ascending identity-ID order and returns the
// best match, or Known=false if no reference embedding is closer than the
// threshold. No side effects.
func (m Matcher) Match(probe []float32, snap *roster.Snapshot) Result {
	res := Result{IdentityID: -1, Distance: math.Inf(1)}
	if snap == nil || len(snap.Identities) == 0 {
		return res
	}

	for _, id := range snap.Identities {
		for _, ref := range id.Embeddings {
			d := euclidean(probe, ref)
			if d < res.Distance-m.TieEpsilon {
				res.IdentityID = id.ID
				res.Name = id.Name
				res.Distance = d
				res.Ambiguous = false
			} else if d <= res.Distance+m.TieEpsilon && id.ID != res.IdentityID {
				// Within epsilon of the current minimum: the earlier
				// (lower-ID) identity wins, but the match is flagged.
				res.Ambiguous = true
			}
		}
	}

	if res.Distance < m.Threshold {
		res.Known = true
	} else {
		res.IdentityID = -1
		res.Name = ""
		res.Known = false
	}
	return res
}

// euclidean computes the L2 distance. Embeddings of mismatched length
// (e.g. a roster entry from a different model) compare as infinitely far.
func euclidean(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
