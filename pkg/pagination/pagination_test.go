package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantPer    int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=-1&per_page=abc", 1, 20, 0},
		{"?per_page=500", 1, MaxPerPage, 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/offers"+tc.query, nil))
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantPer, p.PerPage)
			assert.Equal(t, tc.wantOffset, p.Offset())
		})
	}
}
