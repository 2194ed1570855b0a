package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obsRecord struct {
	RouteID  string  `json:"route_id"`
	Distress string  `json:"distress"`
	Severity float64 `json:"severity"`
}

func collectJSON[T any](t *testing.T, outCh <-chan T, errCh <-chan error) []T {
	t.Helper()
	var items []T
	for item := range outCh {
		items = append(items, item)
	}
	require.NoError(t, <-errCh)
	return items
}

func TestStreamJSONArray_Bare(t *testing.T) {
	input := `[{"route_id":"IH-10","distress":"rutting","severity":3},
	           {"route_id":"US-90","distress":"cracking","severity":1}]`

	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(input), "")
	items := collectJSON(t, outCh, errCh)

	require.Len(t, items, 2)
	assert.Equal(t, "IH-10", items[0].RouteID)
	assert.Equal(t, "cracking", items[1].Distress)
}

func TestStreamJSONArray_NamedField(t *testing.T) {
	input := `{
		"survey_date": "2024-03-01",
		"meta": {"district": 12, "tags": ["aran", "pass-2"]},
		"observations": [
			{"route_id":"IH-10","distress":"rutting","severity":3},
			{"route_id":"IH-10","distress":"raveling","severity":2},
			{"route_id":"SH-6","distress":"cracking","severity":4}
		],
		"trailer": true
	}`

	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(input), "observations")
	items := collectJSON(t, outCh, errCh)

	require.Len(t, items, 3)
	assert.Equal(t, "SH-6", items[2].RouteID)
	assert.InDelta(t, 2.0, items[1].Severity, 0.001)
}

func TestStreamJSONArray_FieldNotFound(t *testing.T) {
	input := `{"other": []}`
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(input), "observations")
	for range outCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStreamJSONArray_NotAnArray(t *testing.T) {
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(`{"a":1}`), "")
	for range outCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestStreamJSONArray_FieldIsNotArray(t *testing.T) {
	input := `{"observations": {"oops": true}}`
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(input), "observations")
	for range outCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestStreamJSONArray_Empty(t *testing.T) {
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(`[]`), "")
	items := collectJSON(t, outCh, errCh)
	assert.Empty(t, items)
}

func TestStreamJSONArray_EmptyInput(t *testing.T) {
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(""), "")
	items := collectJSON(t, outCh, errCh)
	assert.Empty(t, items)
}

func TestStreamJSONArray_MalformedElement(t *testing.T) {
	input := `[{"route_id":"IH-10"},{"severity": "not-a-number"}]`
	outCh, errCh := StreamJSONArray[obsRecord](context.Background(), strings.NewReader(input), "")
	var got []obsRecord
	for item := range outCh {
		got = append(got, item)
	}
	require.Error(t, <-errCh)
	assert.Len(t, got, 1)
}
