// Package extract turns a fetched place page into a models.Place.
//
// The page embeds its state as a JSON array assigned to
// window.APP_INITIALIZATION_STATE. The record lives at fixed positions in
// that array (and, for the detailed layout, in a second JSON document stored
// as a string inside it). Every position is type- and bounds-checked; any
// mismatch is reported as an *Error wrapping ErrShape instead of producing a
// half-filled record.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/pkg/models"
)

const (
	// StateMarker precedes the embedded state blob
	StateMarker = ";window.APP_INITIALIZATION_STATE="
	// StateEnd follows the embedded state blob
	StateEnd = ";window.APP_FLAGS"

	xssiPrefix = ")]}'"
)

// Failure stages
const (
	StageLocate = "locate"
	StageDecode = "decode"
	StageShape  = "shape"
)

var (
	ErrMarkerNotFound = errors.New("state marker not found")
	ErrDecode         = errors.New("state blob is not decodable")
	ErrShape          = errors.New("state blob has unexpected shape")
)

// Error describes why a body could not be turned into a record
type Error struct {
	Stage string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("extract %s at %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Extractor parses place pages. The zero value is ready to use.
type Extractor struct {
	// DisableScriptEval turns off the JavaScript fallback for state blobs
	// that are not strict JSON
	DisableScriptEval bool
}

// New returns an Extractor with the script fallback enabled
func New() *Extractor {
	return &Extractor{}
}

// Extract parses body. It performs no I/O.
func (x *Extractor) Extract(body []byte) (models.Place, error) {
	blob, err := locateState(body)
	if err != nil {
		return models.Place{}, err
	}

	outer, err := x.decode(blob)
	if err != nil {
		return models.Place{}, err
	}

	place, detailedErr := detailedPlace(x, outer)
	if detailedErr == nil {
		return place, nil
	}

	place, titleErr := titleOnlyPlace(outer)
	if titleErr == nil {
		return place, nil
	}

	// Report the richer layout's failure; it is the one current pages use
	return models.Place{}, detailedErr
}

// locateState finds the state blob, preferring inline scripts
func locateState(body []byte) (string, error) {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		var blob string
		doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if _, external := sel.Attr("src"); external {
				return true
			}
			text := sel.Text()
			if i := strings.Index(text, StateMarker); i >= 0 {
				blob = cutState(text[i+len(StateMarker):])
				return false
			}
			return true
		})
		if blob != "" {
			return blob, nil
		}
	}

	// Fall back to a raw search for pages goquery could not walk
	if i := bytes.Index(body, []byte(StateMarker)); i >= 0 {
		if blob := cutState(string(body[i+len(StateMarker):])); blob != "" {
			return blob, nil
		}
	}

	return "", &Error{Stage: StageLocate, Err: ErrMarkerNotFound}
}

// cutState trims s at the end marker, or at the end of the script
func cutState(s string) string {
	if j := strings.Index(s, StateEnd); j >= 0 {
		s = s[:j]
	} else if j := strings.Index(s, "</script>"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}

// decode parses a JSON document, falling back to script evaluation
func (x *Extractor) decode(blob string) (any, error) {
	var v any
	jsonErr := json.Unmarshal([]byte(blob), &v)
	if jsonErr == nil {
		return v, nil
	}

	if !x.DisableScriptEval {
		if v, err := evalLiteral(blob); err == nil {
			return v, nil
		}
	}

	return nil, &Error{Stage: StageDecode, Err: fmt.Errorf("%w: %v", ErrDecode, jsonErr)}
}

// detailedPlace reads the layout where outer[3][6] holds a second,
// XSSI-prefixed JSON document
func detailedPlace(x *Extractor, outer any) (models.Place, error) {
	raw, err := str(outer, 3, 6)
	if err != nil {
		return models.Place{}, err
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, xssiPrefix))

	inner, err := x.decode(raw)
	if err != nil {
		return models.Place{}, err
	}

	name, err := str(inner, 6, 11)
	if err != nil {
		return models.Place{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Place{}, shapeErr([]int{6, 11}, "empty name")
	}

	place := models.Place{
		Name:    name,
		Address: optionalStr(inner, 6, 39),
		Phone:   optionalStr(inner, 6, 178, 0, 3),
		Owner:   optionalStr(inner, 6, 178, 0, 1),
	}
	if categories, err := strs(inner, 6, 13); err == nil && len(categories) > 0 {
		place.Categories = categories
	}
	return place, nil
}

// titleOnlyPlace reads the older layout that only exposes the title
func titleOnlyPlace(outer any) (models.Place, error) {
	name, err := str(outer, 5, 3, 2, 1)
	if err != nil {
		return models.Place{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Place{}, shapeErr([]int{5, 3, 2, 1}, "empty title")
	}
	return models.Place{Name: name}, nil
}
