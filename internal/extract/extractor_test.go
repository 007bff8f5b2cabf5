package extract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(blob string) []byte {
	return []byte(`<!DOCTYPE html><html><head><title>Maps</title>
<script src="/maps/app.js"></script>
<script>window.APP_OPTIONS=[1,2]` + StateMarker + blob + StateEnd + `=[];</script>
</head><body></body></html>`)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func detailedBlob(t *testing.T) string {
	t.Helper()
	details := make([]any, 179)
	details[11] = "Blue Tokai Coffee"
	details[13] = []any{"Cafe", "Coffee shop", nil}
	details[39] = "12 MG Road, Bengaluru"
	details[178] = []any{[]any{nil, "Owner Name", nil, "+91 80 1234 5678"}}

	inner := []any{nil, nil, nil, nil, nil, nil, details}
	outer := []any{nil, nil, nil, []any{nil, nil, nil, nil, nil, nil, ")]}'\n" + mustJSON(t, inner)}}
	return mustJSON(t, outer)
}

func TestExtract_DetailedLayout(t *testing.T) {
	place, err := New().Extract(page(detailedBlob(t)))

	require.NoError(t, err)
	assert.Equal(t, "Blue Tokai Coffee", place.Name)
	assert.Equal(t, "12 MG Road, Bengaluru", place.Address)
	assert.Equal(t, "+91 80 1234 5678", place.Phone)
	assert.Equal(t, "Owner Name", place.Owner)
	assert.Equal(t, []string{"Cafe", "Coffee shop"}, place.Categories)
}

func TestExtract_DetailedLayoutMissingOptionalFields(t *testing.T) {
	details := make([]any, 12)
	details[11] = "Only A Name"
	inner := []any{nil, nil, nil, nil, nil, nil, details}
	outer := []any{nil, nil, nil, []any{nil, nil, nil, nil, nil, nil, mustJSON(t, inner)}}

	place, err := New().Extract(page(mustJSON(t, outer)))

	require.NoError(t, err)
	assert.Equal(t, "Only A Name", place.Name)
	assert.Empty(t, place.Address)
	assert.Empty(t, place.Phone)
	assert.Nil(t, place.Categories)
}

func TestExtract_TitleOnlyLayout(t *testing.T) {
	outer := []any{nil, nil, nil, nil, nil, []any{nil, nil, nil, []any{nil, nil, []any{nil, "Web Dev Studio"}}}}

	place, err := New().Extract(page(mustJSON(t, outer)))

	require.NoError(t, err)
	assert.Equal(t, "Web Dev Studio", place.Name)
}

func TestExtract_JavaScriptLiteralFallback(t *testing.T) {
	blob := `[0,0,0,0,0,[0,0,0,[0,0,[0,'Single Quoted Title']]]]`

	place, err := New().Extract(page(blob))
	require.NoError(t, err)
	assert.Equal(t, "Single Quoted Title", place.Name)

	_, err = (&Extractor{DisableScriptEval: true}).Extract(page(blob))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtract_ShapeMismatchIsExtractionFailure(t *testing.T) {
	cases := map[string]string{
		"too short":          `[1,2,3]`,
		"wrong type at [5]":  `[0,0,0,0,0,"not an array"]`,
		"number at [3][6]":   `[[],[],[],[0,0,0,0,0,0,42]]`,
		"object instead":     `{"a":1}`,
		"empty title":        `[0,0,0,0,0,[0,0,0,[0,0,[0,"  "]]]]`,
		"inner not decoding": `[0,0,0,[0,0,0,0,0,0,")]}'\n{{{"]]`,
		"null everywhere":    `[null,null,null,null,null,null]`,
	}

	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				place, err := New().Extract(page(blob))
				require.Error(t, err)
				assert.Empty(t, place.Name)

				var xe *Error
				require.True(t, errors.As(err, &xe), "expected *extract.Error, got %T", err)
				assert.True(t, errors.Is(err, ErrShape) || errors.Is(err, ErrDecode), "unexpected error %v", err)
			})
		})
	}
}

func TestExtract_MarkerMissing(t *testing.T) {
	_, err := New().Extract([]byte(`<html><body><h1>Consent required</h1></body></html>`))
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

func TestExtract_UndecodableBlob(t *testing.T) {
	_, err := New().Extract(page(`{{{ not json`))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtract_RawFallbackWithoutScriptTag(t *testing.T) {
	body := []byte(`garbage` + StateMarker + `[0,0,0,0,0,[0,0,0,[0,0,[0,"Raw"]]]]` + StateEnd + `=1`)

	place, err := New().Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "Raw", place.Name)
}
