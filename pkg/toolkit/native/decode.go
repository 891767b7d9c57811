package native

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/recera/dicomview/pkg/toolkit"
)

// ErrNotDICOM is returned for payloads that do not parse as DICOM
var ErrNotDICOM = errors.New("not a DICOM instance")

// Decode parses the header of a DICOM payload. Pixel data is skipped.
func Decode(data []byte) (*toolkit.Image, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDICOM, err)
	}
	return imageFromDataset(&ds), nil
}

func imageFromDataset(ds *dicom.Dataset) *toolkit.Image {
	img := &toolkit.Image{
		Rows:           intValue(ds, tag.Rows),
		Columns:        intValue(ds, tag.Columns),
		SOPInstanceUID: stringValue(ds, tag.SOPInstanceUID),
		InstanceNumber: intValue(ds, tag.InstanceNumber),
	}

	// Multi-valued window tags describe alternative windows, the first one is the default
	if w, ok := floatValue(ds, tag.WindowWidth); ok {
		img.WindowWidth = w
	}
	if c, ok := floatValue(ds, tag.WindowCenter); ok {
		img.WindowCenter = c
	}
	return img
}

func firstValue(ds *dicom.Dataset, t tag.Tag) (any, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil, false
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0]), true
		}
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	v, ok := firstValue(ds, t)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimRight(s, "\x00")
	}
	return fmt.Sprint(v)
}

func floatValue(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	v, ok := firstValue(ds, t)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func intValue(ds *dicom.Dataset, t tag.Tag) int {
	f, ok := floatValue(ds, t)
	if !ok {
		return 0
	}
	return int(f)
}
