// Package classify labels a fetched page body so the pipeline can pick
// the right settle wait and extraction path before parsing anything.
package classify

import "bytes"

// Label is the page category assigned to a fetched body.
type Label string

const (
	// LabelCompleted is a listing whose auction has ended.
	LabelCompleted Label = "completed"
	// LabelPending is a listing whose auction is still running.
	LabelPending Label = "pending"
	// LabelError is a site error or not-found page.
	LabelError Label = "error"
	// LabelNormal is a regular listing page with no ending marker.
	LabelNormal Label = "normal"
	// LabelUnknown is a body none of the markers recognized.
	LabelUnknown Label = "unknown"
)

// Markers are the literal byte sequences that identify each category
// for one site. Order of precedence: error, completed, pending, normal.
type Markers struct {
	Error     [][]byte
	Completed [][]byte
	Pending   [][]byte
	Normal    [][]byte
}

// Classifier labels page bodies with a byte scan. No parse happens
// here; a label must be cheap enough to compute on every fetch.
type Classifier struct {
	markers Markers
}

// New builds a Classifier for one site's markers.
func New(markers Markers) *Classifier {
	return &Classifier{markers: markers}
}

// Classify scans the body and returns the first matching category.
// Error markers win over completion markers: an error page can echo
// listing phrases inside its suggestion links.
func (c *Classifier) Classify(body []byte) Label {
	switch {
	case containsAny(body, c.markers.Error):
		return LabelError
	case containsAny(body, c.markers.Completed):
		return LabelCompleted
	case containsAny(body, c.markers.Pending):
		return LabelPending
	case containsAny(body, c.markers.Normal):
		return LabelNormal
	default:
		return LabelUnknown
	}
}

func containsAny(body []byte, needles [][]byte) bool {
	for _, needle := range needles {
		if len(needle) > 0 && bytes.Contains(body, needle) {
			return true
		}
	}
	return false
}
