package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testMarkers() Markers {
	return Markers{
		Error:     [][]byte{[]byte("Page not found"), []byte("Something went wrong")},
		Completed: [][]byte{[]byte("Sold for"), []byte("Bid to")},
		Pending:   [][]byte{[]byte("Auction ends")},
		Normal:    [][]byte{[]byte("class=\"listing\"")},
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	c := New(testMarkers())

	cases := []struct {
		name string
		body string
		want Label
	}{
		{"completed sale", `<div class="listing">Sold for $45,000</div>`, LabelCompleted},
		{"completed no sale", `<div class="listing">Bid to $12,500</div>`, LabelCompleted},
		{"pending", `<div class="listing">Auction ends in 2 days</div>`, LabelPending},
		{"plain listing", `<div class="listing">1990 Miata</div>`, LabelNormal},
		{"error page", `<h1>Page not found</h1>`, LabelError},
		{"unrecognized", `<html><body>maintenance</body></html>`, LabelUnknown},
		{"empty body", ``, LabelUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, c.Classify([]byte(tc.body)))
		})
	}
}

func TestClassify_ErrorBeatsCompleted(t *testing.T) {
	t.Parallel()
	c := New(testMarkers())

	// Error pages echo listing phrases in their suggestion links.
	body := `<h1>Page not found</h1><a href="/listing/x">Sold for $9,000</a>`
	require.Equal(t, LabelError, c.Classify([]byte(body)))
}

func TestClassify_EmptyMarkersNeverMatch(t *testing.T) {
	t.Parallel()
	c := New(Markers{Completed: [][]byte{nil, {}}})
	require.Equal(t, LabelUnknown, c.Classify([]byte("anything")))
}
